// Package httpclient kapselt alle externen HTTP-Aufrufe der Quellen-Adapter:
// festes Inter-Request-Delay, Cooldown bei 429 und exponentielles Backoff
// mit begrenzten Retries für alle anderen Fehler.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"regintel/sources"
)

// Options parametrisieren den Client pro Quelle.
type Options struct {
	// Name der Quelle, nur fürs Logging.
	Name string

	// Delay wird nach jedem erfolgreichen Aufruf gewartet, um unter den
	// publizierten Rate-Limits zu bleiben.
	Delay time.Duration

	// Timeout pro HTTP-Aufruf.
	Timeout time.Duration

	// MaxRetries begrenzt Backoff-Versuche und 429-Cooldowns getrennt.
	MaxRetries int

	// BaseDelay ist die Basis für das exponentielle Backoff (BaseDelay * 2^n).
	BaseDelay time.Duration

	// Cooldown429 ist die feste Wartezeit nach einem HTTP 429.
	Cooldown429 time.Duration
}

// DefaultOptions liefert die Standardwerte für eine Quelle.
func DefaultOptions(name string) Options {
	return Options{
		Name:        name,
		Delay:       500 * time.Millisecond,
		Timeout:     30 * time.Second,
		MaxRetries:  3,
		BaseDelay:   2 * time.Second,
		Cooldown429: 5 * time.Second,
	}
}

// Client ist der geteilte Rate-Limited Fetcher für alle Adapter.
type Client struct {
	opts   Options
	http   *http.Client
	logger *zap.Logger
}

// New erstellt einen Client mit den gegebenen Optionen. Nullwerte werden
// durch die Defaults ersetzt.
func New(opts Options, logger *zap.Logger) *Client {
	def := DefaultOptions(opts.Name)
	if opts.Delay <= 0 {
		opts.Delay = def.Delay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = def.MaxRetries
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = def.BaseDelay
	}
	if opts.Cooldown429 <= 0 {
		opts.Cooldown429 = def.Cooldown429
	}
	return &Client{
		opts:   opts,
		http:   &http.Client{Timeout: opts.Timeout},
		logger: logger,
	}
}

// GetJSON ruft die URL ab und dekodiert die Antwort nach out.
// Nach Ausschöpfen aller Retries wird ErrSourceUnavailable zurückgegeben.
func (c *Client) GetJSON(ctx context.Context, rawURL string, headers map[string]string, out any) error {
	log := c.logger.With(zap.String("source", c.opts.Name), zap.String("endpoint", stripQuery(rawURL)))

	var lastErr error
	attempt := 0   // Backoff-Versuche
	cooldowns := 0 // 429-Cooldowns, zählen nicht gegen das Backoff

	for attempt < c.opts.MaxRetries && cooldowns <= c.opts.MaxRetries {
		log.Debug("Rufe Quelle ab", zap.Int("attempt", attempt+1), zap.Int("cooldowns", cooldowns))

		status, err := c.doOnce(ctx, rawURL, headers, out)
		if err == nil {
			// Festes Delay nach jedem Erfolg
			if err := sleepCtx(ctx, c.opts.Delay); err != nil {
				return err
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err

		if status == http.StatusTooManyRequests {
			cooldowns++
			if cooldowns > c.opts.MaxRetries {
				break
			}
			log.Warn("Rate-Limit erreicht, warte Cooldown ab", zap.Duration("cooldown", c.opts.Cooldown429))
			if err := sleepCtx(ctx, c.opts.Cooldown429); err != nil {
				return err
			}
			continue
		}

		attempt++
		if attempt >= c.opts.MaxRetries {
			break
		}
		backoff := c.opts.BaseDelay * (1 << (attempt - 1))
		log.Warn("Abruf fehlgeschlagen, versuche erneut",
			zap.Error(err), zap.Duration("backoff", backoff), zap.Int("attempt", attempt))
		if err := sleepCtx(ctx, backoff); err != nil {
			return err
		}
	}

	log.Error("Quelle nach allen Retries nicht erreichbar", zap.Error(lastErr))
	return fmt.Errorf("%w: %s: %v", sources.ErrSourceUnavailable, c.opts.Name, lastErr)
}

// doOnce führt genau einen Aufruf aus. Der HTTP-Status wird für die
// 429-Unterscheidung mitgeliefert (0 bei Netzwerkfehlern).
func (c *Client) doOnce(ctx context.Context, rawURL string, headers map[string]string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "regintel/1.0 (Regulatory Intelligence)")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// stripQuery entfernt Query-Parameter (API-Keys!) aus der URL fürs Logging.
func stripQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		if i := strings.IndexByte(rawURL, '?'); i >= 0 {
			return rawURL[:i]
		}
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
