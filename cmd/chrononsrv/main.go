package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/chronodb/chronon/internal/config"
	"github.com/chronodb/chronon/internal/facade"
	"github.com/chronodb/chronon/internal/store"
	"github.com/chronodb/chronon/internal/sweep"
	"github.com/chronodb/chronon/internal/telemetry"
	"github.com/chronodb/chronon/internal/txn"
	"github.com/chronodb/chronon/internal/walog"
)

var (
	flagConfig  = flag.String("config", "", "path to a YAML config file (optional, defaults apply otherwise)")
	flagGRPC    = flag.String("grpc", ":9090", "gRPC listen address (empty to disable)")
	flagHTTP    = flag.String("http", ":8080", "HTTP listen address for the status endpoint (empty to disable)")
	flagVerbose = flag.Bool("v", false, "verbose logging")
)

func main() {
	flag.Parse()
	log := telemetry.Default
	if *flagVerbose {
		log.SetLevel(telemetry.LevelDebug)
	}

	cfg := config.Default()
	if strings.TrimSpace(*flagConfig) != "" {
		loaded, err := config.Load(*flagConfig)
		if err != nil {
			log.Errorf("config: %v", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	srv, err := newServer(cfg, log)
	if err != nil {
		log.Errorf("startup: %v", err)
		os.Exit(1)
	}
	defer srv.Close()

	if err := srv.sweeper.Start(); err != nil {
		log.Errorf("sweep: %v", err)
		os.Exit(1)
	}
	defer srv.sweeper.Stop()

	encoding.RegisterCodec(facade.Codec())

	var grpcErr error
	if *flagGRPC != "" {
		go func() {
			lis, err := net.Listen("tcp", *flagGRPC)
			if err != nil {
				log.Errorf("gRPC listen: %v", err)
				grpcErr = err
				return
			}
			gs := grpc.NewServer(grpc.UnaryInterceptor(facade.LoggingInterceptor(log)))
			facade.RegisterChrononServer(gs, srv.facade)
			log.Infof("gRPC listening on %s", *flagGRPC)
			if err := gs.Serve(lis); err != nil {
				log.Errorf("gRPC serve: %v", err)
				grpcErr = err
			}
		}()
	}

	if *flagHTTP != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/status", srv.handleStatus)
		log.Infof("HTTP listening on %s", *flagHTTP)
		if err := http.ListenAndServe(*flagHTTP, mux); err != nil {
			log.Errorf("HTTP serve: %v", err)
			if grpcErr != nil {
				os.Exit(1)
			}
		}
	} else {
		select {}
	}
}

// server wires together everything a running coordinator process needs:
// the recovered transaction manager, the periodic maintenance sweeper,
// and the gRPC façade driving both. The sweeper owns the log segment
// lifecycle (it rotates to a new segment on every snapshot), so
// shutdown closes whatever segment is currently open through it
// rather than tracking a writer here directly.
type server struct {
	mgr     *txn.Manager
	sweeper *sweep.Sweeper
	facade  *facade.FacadeServer
}

func newServer(cfg *config.Config, log *telemetry.Logger) (*server, error) {
	st, err := store.Open(cfg.Snapshot.Dir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	txCfg := txn.Config{
		MaxTxPerMs:     int64(cfg.Tx.MaxPerMs),
		DefaultTimeout: cfg.DefaultTimeout(),
		MaxTimeout:     cfg.MaxTimeout(),
	}

	mgr, _, err := st.Recover(txCfg)
	if err != nil {
		return nil, fmt.Errorf("recover: %w", err)
	}

	epoch := time.Now().UnixMilli()
	writerCfg := walog.WriterConfig{Log: log}
	w, err := walog.CreateSegment(st.SegmentPath(epoch), writerCfg)
	if err != nil {
		return nil, fmt.Errorf("create log segment: %w", err)
	}
	mgr.SetLog(w)

	sw := sweep.New(mgr, st, w, sweep.Config{
		CleanupInterval:  cfg.CleanupInterval(),
		SnapshotInterval: cfg.SnapshotInterval(),
		RetainCount:      cfg.Snapshot.RetainCount,
		WriterConfig:     writerCfg,
	}, log)

	return &server{
		mgr:     mgr,
		sweeper: sw,
		facade:  facade.NewFacadeServer(mgr),
	}, nil
}

func (s *server) Close() {
	if err := s.sweeper.CloseWriter(); err != nil {
		telemetry.Default.Warnf("close log segment: %v", err)
	}
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.mgr.Status()
	writeJSON(w, map[string]any{
		"ok":            true,
		"time":          time.Now().Format(time.RFC3339),
		"read_pointer":  st.ReadPointer,
		"write_pointer": st.WritePointer,
		"in_progress":   st.InProgressCount,
		"invalid":       st.InvalidCount,
		"committing":    st.CommittingCount,
		"committed":     st.CommittedCount,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
