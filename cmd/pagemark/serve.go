package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/pagemark/internal/inbox"
)

type serveCmd struct {
	listen  string
	db      string
	dir     string
	forward string
	*root
	fs *flag.FlagSet
}

func (s *serveCmd) Program() string { return s.root.Program() + " serve" }

func (s *serveCmd) FlagSet() *flag.FlagSet {
	return s.fs
}

func parseServeCmd(args []string, r *root) (*serveCmd, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	s := &serveCmd{root: r, fs: fs}
	fs.Usage = usageFunc(s)
	in := r.config.Inbox
	fs.StringVar(&s.listen, "listen", in.Listen, "address to listen on")
	fs.StringVar(&s.db, "db", in.DB, "sqlite database path")
	fs.StringVar(&s.dir, "dir", in.Dir, "directory for snapshot screenshots")
	fs.StringVar(&s.forward, "forward", in.ForwardURL, "hub URL every accepted snapshot is forwarded to")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 {
		return nil, &UsageError{of: s}
	}
	return s, nil
}

// newInboxHandler opens the store and builds the router. The returned
// closer releases the store.
func (s *serveCmd) newInboxHandler(ctx context.Context) (http.Handler, func() error, error) {
	store, err := inbox.OpenStore(ctx, s.db)
	if err != nil {
		return nil, nil, fmt.Errorf("open inbox %s: %w", s.db, err)
	}
	srv := inbox.NewServer(store, inbox.Config{
		Dir:        s.dir,
		ForwardURL: s.forward,
		Params:     s.config.Params(),
		Logger:     s.log(),
	})
	return srv.Handler(), store.Close, nil
}

func (s *serveCmd) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	handler, closeStore, err := s.newInboxHandler(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	srv := &http.Server{
		Addr:              s.listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log().Info("inbox listening", "addr", s.listen, "db", s.db, "dir", s.dir, "forward", s.forward)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve %s: %w", s.listen, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
