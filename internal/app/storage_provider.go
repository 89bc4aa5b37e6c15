package app

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/yungbote/winegraph/internal/platform/gcp"
	"github.com/yungbote/winegraph/internal/platform/logger"
)

var newObjectReader = gcp.NewObjectReader

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidEmulatorHost StorageProviderBootstrapErrorCode = "invalid_emulator_host"
	StorageProviderBootstrapErrorConnectFailed       StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code         StorageProviderBootstrapErrorCode
	EmulatorHost string
	Cause        error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "object storage bootstrap failed"
	}
	return fmt.Sprintf(
		"object storage bootstrap failed (code=%s emulator_host=%q): %v",
		e.Code,
		e.EmulatorHost,
		e.Cause,
	)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveObjectReader returns nil when bucket sources are disabled; gs://
// sources then fail at open time.
func resolveObjectReader(ctx context.Context, log *logger.Logger, cfg GCSConfig) (gcp.ObjectReader, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	host := strings.TrimSpace(cfg.EmulatorHost)
	if host != "" {
		if err := checkEmulatorHost(host); err != nil {
			err = &StorageProviderBootstrapError{
				Code:         StorageProviderBootstrapErrorInvalidEmulatorHost,
				EmulatorHost: host,
				Cause:        err,
			}
			log.Error("Object storage provider selection failed", "emulator_host", host, "error_code", StorageProviderBootstrapErrorInvalidEmulatorHost, "error", err)
			return nil, err
		}
	}

	log.Info("Selecting object storage provider", "emulator_host", host)
	reader, err := newObjectReader(ctx, log, cfg.Config)
	if err != nil {
		err = &StorageProviderBootstrapError{
			Code:         StorageProviderBootstrapErrorConnectFailed,
			EmulatorHost: host,
			Cause:        err,
		}
		log.Error("Object storage provider bootstrap failed", "emulator_host", host, "error_code", StorageProviderBootstrapErrorConnectFailed, "error", err)
		return nil, err
	}
	return reader, nil
}

func checkEmulatorHost(host string) error {
	u, err := url.Parse(host)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("emulator host %q must be an http(s) URL", host)
	}
	if u.Host == "" {
		return fmt.Errorf("emulator host %q has no host", host)
	}
	return nil
}
