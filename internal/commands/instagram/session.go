package instagram

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Davincible/goinsta/v3"

	"github.com/akidev/akibot/internal/app/di"
	"github.com/akidev/akibot/internal/logger"
)

type instagramOperation[T any] func() (T, error)

// openSession restores the exported session when one exists; otherwise it
// logs in with the configured credentials and exports the fresh session.
func openSession(di *di.Container, proxyURL string) (*goinsta.Instagram, error) {
	sessionPath := di.Cfg.Instagram().SessionPath

	if _, err := os.Stat(sessionPath); err == nil {
		insta, err := goinsta.Import(sessionPath)
		if err == nil {
			applyProxy(insta, proxyURL, di.Logger)
			di.Logger.Info("Instagram session loaded successfully")
			return insta, nil
		}
		di.Logger.WithError(err).Warn("Failed to load Instagram session, creating new one")
	}

	di.Logger.Info("No existing Instagram session found, creating a new one")

	username, password := di.Cfg.Instagram().Credentials()
	insta := goinsta.New(username, password)
	applyProxy(insta, proxyURL, di.Logger)

	if err := insta.Login(); err != nil {
		return nil, fmt.Errorf("failed to login to Instagram: %w", err)
	}
	di.Logger.Info("Logged in to Instagram successfully")

	if err := insta.Export(sessionPath); err != nil {
		di.Logger.WithError(err).Warn("Failed to save Instagram session")
	}

	return insta, nil
}

func applyProxy(insta *goinsta.Instagram, proxyURL string, log logger.Logger) {
	proxy, err := url.Parse(proxyURL)
	if err != nil || proxy.String() == "" {
		return
	}
	if err := insta.SetProxy(proxy.String(), false, true); err != nil {
		log.WithError(err).Warn("Failed to set proxy for Instagram client")
		return
	}
	log.Info("Proxy configured for Instagram: " + proxy.Redacted())
}

// executeWithRelogin retries the operation once after re-authenticating when
// the error looks like an expired or challenged session.
func executeWithRelogin[T any](c *Command, op instagramOperation[T]) (T, error) {
	result, err := op()
	if err == nil || !isSessionError(err) {
		return result, err
	}

	if rerr := c.relogin(); rerr != nil {
		var zero T
		return zero, fmt.Errorf("failed to relogin: %w", rerr)
	}

	result, err = op()
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed after relogin: %w", err)
	}
	return result, nil
}

func isSessionError(err error) bool {
	msg := err.Error()
	for _, marker := range []string{
		"logged out",
		"login required",
		"not authorized",
		"checkpoint required",
		"challenge required",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (c *Command) relogin() error {
	c.Logger.Info("Attempting to relogin to Instagram")

	username, password := c.Cfg.Instagram().Credentials()
	insta := goinsta.New(username, password)

	if err := insta.Login(); err != nil {
		return fmt.Errorf("failed to relogin to Instagram: %w", err)
	}

	if err := insta.Export(c.Cfg.Instagram().SessionPath); err != nil {
		c.Logger.WithError(err).Warn("Failed to save Instagram session after relogin")
	}

	c.insta = insta
	return nil
}

// startSessionRefresher re-authenticates on a timer so the session does not
// silently expire between commands.
func (c *Command) startSessionRefresher() {
	interval := c.sessionRefreshInterval
	if interval <= 0 {
		interval = 12 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.Logger.Info("Instagram session refresher started")

	for range ticker.C {
		if err := c.refreshSession(); err != nil {
			c.Logger.WithError(err).Error("Failed to refresh Instagram session")
		} else {
			c.Logger.Info("Instagram session refreshed successfully")
		}
	}
}

func (c *Command) refreshSession() error {
	backupPath := c.Cfg.Instagram().SessionPath + ".bak"
	if err := c.insta.Export(backupPath); err != nil {
		c.Logger.WithError(err).Warn("Failed to backup Instagram session")
	}
	return c.relogin()
}
