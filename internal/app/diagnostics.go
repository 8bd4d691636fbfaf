package app

import (
	"errors"

	"github.com/MrSnakeDoc/nomad-reconciler/internal/config"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/logger"
	"github.com/MrSnakeDoc/nomad-reconciler/internal/nomad"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
)

const endpointGuidance = "it must be a valid URI: http(s)://nomad.example.com or http(s)://127.0.0.1:4646"

// Diagnose logs a single classified message for the error that ended the
// reconciler and returns the exit code. A nil error or a signal exits cleanly.
func Diagnose(log logger.Logger, err error, hasToken bool) int {
	if err == nil {
		return ExitOK
	}

	var (
		sigErr      *SignalError
		endpointErr *nomad.EndpointError
		cfgErr      *config.Error
	)

	switch {
	case errors.As(err, &sigErr):
		log.Warn("received signal, exiting runner",
			logger.String("signal", sigErr.Signal.String()))
		return ExitOK

	case nomad.IsNotAuthorized(err):
		if hasToken {
			log.Error("Invalid nomad token or missing ACL policies: namespace:read-job and namespace:submit-job",
				logger.Error(err))
		} else {
			log.Error("Nomad enabled ACL, but nomad token is not set with environment variable NOMAD_TOKEN",
				logger.Error(err))
		}

	case errors.As(err, &endpointErr):
		log.Error("invalid nomad endpoint, "+endpointGuidance,
			logger.String("endpoint", endpointErr.Endpoint),
			logger.Error(err))

	case errors.As(err, &cfgErr):
		if cfgErr.IsEndpoint() {
			log.Error("invalid nomad endpoint, "+endpointGuidance,
				logger.String("endpoint", cfgErr.Value),
				logger.Error(err))
			break
		}
		log.Error("invalid configuration",
			logger.String("key", cfgErr.Key),
			logger.String("reason", cfgErr.Reason),
			logger.Error(err))

	default:
		if re, ok := nomad.AsResponseError(err); ok {
			log.Error("unknown response error",
				logger.Int("status", re.StatusCode),
				logger.String("method", re.Method),
				logger.String("url", re.URL),
				logger.Error(err))
			break
		}
		if nomad.IsTransport(err) {
			log.Error("nomad API unreachable", logger.Error(err))
			break
		}
		log.Error("reconciler failed", logger.Error(err))
	}

	return ExitFailure
}
