/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Seednode/graffiti/session"
	"github.com/Seednode/graffiti/transport"
)

const (
	timeout time.Duration = 10 * time.Second
	qrSize  int           = 320
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		float64(bytes)/float64(div),
		"kMGTPE"[exp])
}

func logServed(log *zap.Logger, page string, written int, r *http.Request, start time.Time) {
	log.Debug("served",
		zap.String("page", page),
		zap.String("size", humanReadableSize(int64(written))),
		zap.String("to", realIP(r)),
		zap.Duration("took", time.Since(start).Round(time.Microsecond)),
	)
}

func writeText(cfg *Config, log *zap.Logger, errs chan<- error, page, body string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		securityHeaders(cfg, w)

		written, err := w.Write([]byte(body))
		if err != nil {
			errs <- err

			return
		}

		logServed(log, page, written, r, startTime)
	}
}

func serveVersion(cfg *Config, log *zap.Logger, errs chan<- error) httprouter.Handle {
	return writeText(cfg, log, errs, "version", "graffiti v"+releaseVersion+"\n")
}

func serveHealthCheck(cfg *Config, log *zap.Logger, errs chan<- error) httprouter.Handle {
	return writeText(cfg, log, errs, "healthz", "Ok\n")
}

func serveRobots(cfg *Config, log *zap.Logger, errs chan<- error) httprouter.Handle {
	data := `User-agent: Amazonbot
Disallow: /

User-agent: Applebot-Extended
Disallow: /

User-agent: Bytespider
Disallow: /

User-agent: CCBot
Disallow: /

User-agent: ClaudeBot
Disallow: /

User-agent: Google-Extended
Disallow: /

User-agent: GPTBot
Disallow: /

User-agent: meta-externalagent
Disallow: /`

	text := writeText(cfg, log, errs, "robots", data)

	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))

		text(w, r, p)
	}
}

func serveHomePage(cfg *Config, log *zap.Logger, broker *transport.Broker, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		body := fmt.Sprintf("graffiti v%s: %d peers connected", releaseVersion, broker.Endpoints())

		written, err := io.WriteString(w, newPage("graffiti", body))
		if err != nil {
			errs <- err

			return
		}

		logServed(log, "home", written, r, startTime)
	}
}

// servePeer upgrades the request and registers the caller with the broker
// under :id for as long as the socket stays up.
func servePeer(log *zap.Logger, broker *transport.Broker) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		id := p.ByName("id")

		log.Debug("peer connecting", zap.String("id", id), zap.String("from", realIP(r)))

		broker.Serve(w, r, id)
	}
}

type roomStatus struct {
	Code string `json:"code"`
	Open bool   `json:"open"`
}

func serveRoom(cfg *Config, log *zap.Logger, broker *transport.Broker, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		code := session.NormalizeCode(p.ByName("code"))
		if !session.ValidCode(code) {
			http.Error(w, "invalid room code", http.StatusBadRequest)

			return
		}

		data, err := json.Marshal(roomStatus{Code: code, Open: broker.Exists(code)})
		if err != nil {
			errs <- err

			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		written, err := w.Write(data)
		if err != nil {
			errs <- err

			return
		}

		logServed(log, "room", written, r, startTime)
	}
}

// roomURL is the room's status link, which invite QR codes point at. It
// reports whether the room is open; it does not join it.
func roomURL(r *http.Request, prefix, code string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + r.Host + prefix + "/rooms/" + code
}

func serveRoomQR(cfg *Config, log *zap.Logger, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		code := session.NormalizeCode(p.ByName("code"))
		if !session.ValidCode(code) {
			http.Error(w, "invalid room code", http.StatusBadRequest)

			return
		}

		png, err := qrcode.Encode(roomURL(r, cfg.prefix, code), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))
		securityHeaders(cfg, w)

		written, err := w.Write(png)
		if err != nil {
			errs <- err

			return
		}

		logServed(log, "qr", written, r, startTime)
	}
}

func newRouter(cfg *Config, log *zap.Logger, broker *transport.Broker, errs chan<- error) *httprouter.Router {
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		log.Error("panic while serving", zap.String("path", r.URL.Path), zap.Any("panic", i))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		_, _ = io.WriteString(w, newPage("Server Error", "An error has occurred. Please try again."))
	}

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	mux.GET(cfg.prefix+"/", serveHomePage(cfg, log, broker, errs))

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, log, errs))

	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg, log, errs))

	mux.GET(cfg.prefix+"/version", serveVersion(cfg, log, errs))

	mux.GET(cfg.prefix+"/peer/:id", servePeer(log, broker))

	mux.GET(cfg.prefix+"/rooms/:code", serveRoom(cfg, log, broker, errs))

	mux.GET(cfg.prefix+"/rooms/:code/qr", serveRoomQR(cfg, log, errs))

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	return mux
}

// ServePage runs the broker until ctx is cancelled.
func ServePage(ctx context.Context, cfg *Config, log *zap.Logger) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	log.Info("starting", zap.String("version", releaseVersion))

	broker := transport.NewBroker(
		transport.WithLogger(log.Named("broker")),
		transport.WithFrameRate(cfg.frameRate, cfg.frameBurst),
	)

	errs := make(chan error, 64)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           newRouter(cfg, log, broker, errs),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", zap.String("url", fmt.Sprintf("%s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)))

		var err error
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		for {
			select {
			case err := <-errs:
				log.Debug("write failed", zap.Error(err))
			case <-gctx.Done():
				return nil
			}
		}
	})

	return g.Wait()
}
