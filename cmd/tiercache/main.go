// Command tiercache serves JSON documents through a local cache tier in front
// of an authoritative remote tier.
//
// Usage:
//
//	tiercache [glog flags] serve
//	tiercache [glog flags] fetch <id>...
//
// Configuration is read from TIERCACHE_* environment variables.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"

	"github.com/goforj/tiercache"
	"github.com/goforj/tiercache/internal/config"
	"github.com/goforj/tiercache/internal/server"
	"github.com/goforj/tiercache/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

var errUsage = errors.New("usage: tiercache serve | tiercache fetch <id>...")

func main() {
	flag.Parse()
	defer glog.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, flag.Args(), os.Stdout)
	stop()
	if err != nil {
		glog.Errorf("tiercache: %v", err)
		glog.Flush()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	shutdown, err := telemetry.Setup(ctx, cfg.OTelEndpoint, cfg.ServiceName)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			glog.Warningf("tiercache: telemetry shutdown: %v", err)
		}
	}()

	store, res, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer res.Close()

	switch args[0] {
	case "serve":
		return serve(ctx, cfg.ListenAddr, store)
	case "fetch":
		if len(args) < 2 {
			return errUsage
		}
		return fetch(ctx, store, args[1:], out)
	}
	return errUsage
}

func serve(ctx context.Context, addr string, store *tiercache.CacheBackedStore[Document]) error {
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.New[Document](store),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		glog.Infof("tiercache: listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// fetch prints one line per id. Failures are reported inline and make the
// command exit non-zero once every id was tried.
func fetch(ctx context.Context, store *tiercache.CacheBackedStore[Document], ids []string, out io.Writer) error {
	var failed int
	enc := json.NewEncoder(out)
	for _, id := range ids {
		doc, err := store.Fetch(ctx, id)
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s\terror\t%s\t%v\n", id, tiercache.TierOf(err), err)
			continue
		}
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d fetches failed", failed, len(ids))
	}
	return nil
}
