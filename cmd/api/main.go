package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/refnet-platform/walletops/internal/api"
	"github.com/refnet-platform/walletops/internal/config"
	"github.com/refnet-platform/walletops/internal/notify"
	"github.com/refnet-platform/walletops/internal/observability"
	"github.com/refnet-platform/walletops/internal/service"
	"github.com/refnet-platform/walletops/internal/store"
)

func main() {
	logger := observability.NewLogger("api")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	st, err := store.NewStore(cfg.DBSource)
	if err != nil {
		logger.Fatal().Err(err).Msg("unable to connect to database")
	}
	defer st.Close()

	var sink notify.Sink
	if cfg.NATSURL != "" {
		natsSink, err := notify.NewNATSSink(cfg.NATSURL, observability.NewLogger("notify"))
		if err != nil {
			logger.Fatal().Err(err).Msg("nats connect")
		}
		defer natsSink.Close()
		sink = natsSink
	} else {
		sink = &notify.LogSink{Logger: observability.NewLogger("notify")}
	}

	// Initialize Layers
	approvals := service.NewApprovalService(st.Db, sink, observability.NewLogger("approval"))
	collections := service.NewCollectionService(st.Db, sink, observability.NewLogger("collection"))
	withdrawals := service.NewWithdrawalService(st.Db, sink, observability.NewLogger("withdrawal"))
	wallet := service.NewWalletService(st.Db, observability.NewLogger("wallet"))
	handler := api.NewHandler(st, approvals, collections, withdrawals, wallet, logger)

	// Router
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	handler.Register(r.PathPrefix("/api/v1").Subrouter())

	logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
