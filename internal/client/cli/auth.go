package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/canvassync/internal/client/auth"
)

func (c *Cli) runRegister(ctx context.Context) error {
	c.io.Println("=== Registration ===")

	username, err := c.io.ReadInput("Username: ")
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}
	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := c.io.ReadPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read password confirmation: %w", err)
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	userID, err := c.session.Auth.Register(ctx, username, password)
	if err != nil {
		return err
	}

	c.io.Println("✓ Registration successful!")
	c.io.Printf("User ID: %s\n", userID)
	c.io.Println("Now run 'canvassync login'")
	return nil
}

func (c *Cli) runLogin(ctx context.Context) error {
	c.io.Println("=== Login ===")

	username, err := c.io.ReadInput("Username: ")
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}
	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	if err := c.session.Auth.Login(ctx, username, password); err != nil {
		return err
	}

	c.io.Println("✓ Login successful!")
	c.io.Printf("Server: %s\n", c.cfg.Client.ServerURL)
	return nil
}

// runLogout отзывает refresh токен на сервере (если получится) и
// удаляет локальную сессию в любом случае
func (c *Cli) runLogout(ctx context.Context) error {
	if _, err := c.session.Auth.Session(ctx); err != nil {
		if errors.Is(err, auth.ErrNotLoggedIn) {
			c.io.Println("Not logged in")
			return nil
		}
		return err
	}

	if err := c.session.API.Logout(ctx); err != nil {
		c.logger.Warn("server logout failed, clearing local session only", "error", err)
	}
	if err := c.session.Auth.Logout(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	c.io.Println("✓ Logged out")
	return nil
}

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Status ===")

	session, err := c.session.Auth.Session(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrNotLoggedIn) {
			c.io.Println("Status: Not authenticated")
			c.io.Println("Run 'canvassync login' to authenticate")
			return nil
		}
		return err
	}

	c.io.Println("Status: Authenticated")
	c.io.Printf("Username: %s\n", session.Username)
	c.io.Printf("Server: %s\n", session.ServerURL)
	c.io.Printf("Canvas: %s\n", c.session.CanvasID())

	expires := time.Unix(session.ExpiresAt, 0)
	if time.Now().After(expires) {
		c.io.Println("Access token: expired (refreshed on next request)")
	} else {
		c.io.Printf("Access token expires: %s\n", expires.Format(time.RFC3339))
	}

	synced, err := c.session.Sync.LastSynced(ctx, c.session.CanvasID())
	if err != nil {
		return err
	}
	if synced.IsZero() {
		c.io.Println("Last sync: never")
	} else {
		c.io.Printf("Last sync: %s\n", synced.Format(time.RFC3339))
	}
	return nil
}
