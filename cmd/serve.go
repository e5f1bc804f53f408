package cmd

import (
	"log/slog"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Asmer72582/upscholar-live/internal/config"
	"github.com/Asmer72582/upscholar-live/internal/logging"
	"github.com/Asmer72582/upscholar-live/internal/server"
)

var flagListenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the classroom signaling relay",
	Long: `Run the WebSocket relay that classrooms meet through. The relay keeps
the roster per room, relays WebRTC negotiation envelopes between peers,
and fans out chat and whiteboard events.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	// The relay logs at info by default; the join TUI stays quiet.
	logging.Init(slog.LevelInfo)

	if err := godotenv.Load(".env"); err != nil {
		slog.Debug("no .env file found", "err", err)
	}

	cfg, err := config.Load(config.Options{ListenAddr: flagListenAddr})
	if err != nil {
		return err
	}

	hub := server.NewHub()
	go hub.Run()

	http.HandleFunc("/health", server.HealthHandler)
	http.HandleFunc("/ws", server.ServeWs(hub))

	slog.Info("signaling relay listening", "addr", cfg.ListenAddr)
	return http.ListenAndServe(cfg.ListenAddr, nil)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&flagListenAddr, "listen", "l", "", "Listen address (default :8080)")
}
