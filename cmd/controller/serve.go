package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/arbitration"
)

// #region serve-command

var serveCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Process NDJSON turns from stdin and expose Prometheus metrics",
	Long: `Each stdin line is one loosely-keyed turn object (aliases accepted). Each stdout
line is the frozen decision for that turn. /metrics is served on the configured address.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.shutdown()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = rt.cfg.Metrics.Addr
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, rt, addr, os.Stdin, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "metrics listen address (config metrics.addr when empty)")
}

// #endregion serve-command

// #region serve

type turnOutput struct {
	ConversationID string           `json:"conversationId"`
	TurnID         string           `json:"turnId"`
	Decision       arbitration.View `json:"decision"`
	Coordinate     string           `json:"coordinate"`
	Persisted      bool             `json:"persisted"`
	Error          string           `json:"error,omitempty"`
}

func serve(ctx context.Context, rt *runtime, addr string, in io.Reader, out io.Writer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rt.logger.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		err := processLines(ctx, rt, in, out)
		// stdin closed: stop the listener too.
		if err == nil {
			err = errStdinClosed
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errStdinClosed) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

var errStdinClosed = errors.New("stdin closed")

func processLines(ctx context.Context, rt *runtime, in io.Reader, out io.Writer) error {
	enc := json.NewEncoder(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var raw map[string]any
		if err := json.Unmarshal(line, &raw); err != nil {
			if encErr := enc.Encode(turnOutput{Error: "invalid json: " + err.Error()}); encErr != nil {
				return encErr
			}
			continue
		}
		res, err := rt.engine.Process(ctx, raw)
		o := turnOutput{ConversationID: res.ConversationID, TurnID: res.TurnID}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			o.Error = err.Error()
		} else {
			o.Decision = res.Decision.View()
			o.Coordinate = res.Coordinate.String()
			o.Persisted = res.Persisted()
		}
		if err := enc.Encode(o); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// #endregion serve
