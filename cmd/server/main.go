// Command server runs the paper submission web service.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/openconf/paperdrop/internal/audit"
	"github.com/openconf/paperdrop/internal/deadline"
	"github.com/openconf/paperdrop/internal/platform/config"
	platformotel "github.com/openconf/paperdrop/internal/platform/otel"
	"github.com/openconf/paperdrop/internal/roster"
	"github.com/openconf/paperdrop/internal/submission"
	"github.com/openconf/paperdrop/internal/web"
)

// serverEnv holds raw env values before post-parse validation.
type serverEnv struct {
	Addr              string        `env:"PAPERDROP_ADDR" envDefault:":8080"`
	SessionSecret     string        `env:"PAPERDROP_SESSION_SECRET"`
	SessionTTL        time.Duration `env:"PAPERDROP_SESSION_TTL" envDefault:"12h"`
	RosterPath        string        `env:"PAPERDROP_ROSTER" envDefault:"users.json"`
	UploadRoot        string        `env:"PAPERDROP_UPLOAD_ROOT" envDefault:"uploads"`
	AuditDBPath       string        `env:"PAPERDROP_AUDIT_DB" envDefault:"audit.db"`
	Deadline          string        `env:"PAPERDROP_DEADLINE"`
	Timezone          string        `env:"PAPERDROP_TIMEZONE" envDefault:"UTC"`
	MaxUploadBytes    int64         `env:"PAPERDROP_MAX_UPLOAD_BYTES" envDefault:"10485760"`
	AllowedExtensions []string      `env:"PAPERDROP_ALLOWED_EXTENSIONS" envDefault:".pdf,.doc,.docx"`
}

var addr = flag.String("addr", "", "listen address (overrides PAPERDROP_ADDR)")

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		config.Exitf("server: %v", err)
	}
}

func run(ctx context.Context) error {
	var env serverEnv
	if err := config.ParseEnv(&env); err != nil {
		return err
	}
	if *addr != "" {
		env.Addr = *addr
	}
	if env.SessionSecret == "" {
		return errors.New("PAPERDROP_SESSION_SECRET is required")
	}
	if env.Deadline == "" {
		return errors.New("PAPERDROP_DEADLINE is required (RFC3339)")
	}
	due, err := time.Parse(time.RFC3339, env.Deadline)
	if err != nil {
		return errors.New("PAPERDROP_DEADLINE must be RFC3339")
	}
	loc, err := time.LoadLocation(env.Timezone)
	if err != nil {
		return errors.New("PAPERDROP_TIMEZONE is not a valid IANA zone")
	}

	shutdownTracing, err := platformotel.Setup(ctx, "paperdrop")
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("shutdown tracing: %v", err)
		}
	}()

	table, err := roster.LoadFile(env.RosterPath)
	if err != nil {
		return err
	}
	log.Printf("loaded %d participants from %s", table.Len(), env.RosterPath)

	clock := deadline.New(due, loc, nil)

	store, err := submission.New(submission.Config{
		Root:              env.UploadRoot,
		AllowedExtensions: env.AllowedExtensions,
		MaxBytes:          env.MaxUploadBytes,
		FormatTime:        clock.Format,
	})
	if err != nil {
		return err
	}

	var auditStore *audit.Store
	if env.AuditDBPath != "" {
		auditStore, err = audit.Open(env.AuditDBPath)
		if err != nil {
			return err
		}
		defer auditStore.Close()
	}

	server, err := web.NewServer(web.Config{
		Roster:         table,
		Store:          store,
		Clock:          clock,
		Audit:          audit.NewEmitter(auditStore),
		SessionSecret:  env.SessionSecret,
		SessionTTL:     env.SessionTTL,
		MaxUploadBytes: env.MaxUploadBytes,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              env.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s (deadline %s)", env.Addr, clock.Format(due))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
