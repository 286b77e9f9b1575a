package identity

import (
	"context"
	"time"

	"github.com/haasteikko/webclient/internal/log"
)

// SetRenewer replaces the function automatic renewal calls, so a caller
// that coalesces renewals can route timer-driven ones through it too.
func (c *Client) SetRenewer(fn func(ctx context.Context) (*User, error)) {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	c.renewer = fn
}

// StartSilentRenew arms the expiry timer for the stored user, if any.
// Sign-ins and renewals re-arm it on their own.
func (c *Client) StartSilentRenew(ctx context.Context) error {
	user, err := c.GetUser(ctx)
	if err != nil {
		return err
	}
	if user != nil {
		c.schedule(user)
	}
	return nil
}

// loaded raises the loaded event and re-arms the expiry timer.
func (c *Client) loaded(user *User) {
	c.schedule(user)
	c.events.loaded.raise(user.Clone())
}

func (c *Client) schedule(user *User) {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.closed || user.ExpiresAt.IsZero() {
		return
	}

	remaining := user.ExpiresAt.Sub(c.now())
	delay := remaining - c.settings.ExpiringNotificationTime
	if delay < 0 {
		// Short-lived tokens would otherwise renew back to back.
		delay = max(remaining/2, minimumExpiringInterval)
	}
	snapshot := user.Clone()
	c.timer = time.AfterFunc(delay, func() { c.expiring(snapshot) })
}

func (c *Client) expiring(user *User) {
	c.events.expiring.raise(user)
	if !c.settings.AutomaticSilentRenew {
		return
	}

	c.timerMu.Lock()
	renew, closed := c.renewer, c.closed
	c.timerMu.Unlock()
	if closed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.settings.RenewTimeout)
	defer cancel()

	if _, err := renew(ctx); err != nil {
		log.LogWarnWithFields("identity", "Automatic silent renew failed", map[string]any{
			"subject": user.Subject,
			"error":   err.Error(),
		})
		c.events.renewErr.raise(err)
	}
}

func (c *Client) stopTimer() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Close stops automatic renewal.
func (c *Client) Close() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
