package logger

import (
	"time"

	"go.uber.org/zap"
)

// HTTP

func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

func Method(v string) zap.Field {
	return zap.String("method", v)
}

func Path(v string) zap.Field {
	return zap.String("path", v)
}

func URL(v string) zap.Field {
	return zap.String("url", v)
}

func Status(v int) zap.Field {
	return zap.Int("status", v)
}

func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

func Bytes(v int) zap.Field {
	return zap.Int("bytes", v)
}

// Provider

// Environment is the provider environment of a credential.
func Environment(v string) zap.Field {
	return zap.String("environment", v)
}

// KeyID is the provider issued key identifier. It is public and safe to log.
func KeyID(v string) zap.Field {
	return zap.String("key_id", v)
}

// API is the name of an invoked provider operation.
func API(v string) zap.Field {
	return zap.String("api", v)
}

// System

func Component(v string) zap.Field {
	return zap.String("component", v)
}

func Op(v string) zap.Field {
	return zap.String("op", v)
}

func Err(err error) zap.Field {
	return zap.Error(err)
}
