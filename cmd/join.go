package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Asmer72582/upscholar-live/internal/config"
	"github.com/Asmer72582/upscholar-live/internal/media"
	"github.com/Asmer72582/upscholar-live/internal/protocol"
	"github.com/Asmer72582/upscholar-live/internal/session"
	"github.com/Asmer72582/upscholar-live/internal/ui"
)

var (
	flagDomain   string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagName     string
	flagCamera   string
	flagMic      string
	flagScreen   string
	flagNoDevice bool
)

var joinCmd = &cobra.Command{
	Use:     "join <room-id>",
	Aliases: []string{"j"},
	Short:   "Join a live classroom from the terminal",
	Long: `Join a classroom session. Media is read from local RTP capture
pipelines (see --camera/--mic/--screen), or silent synthetic tracks with
--no-device.

Examples:
  uplive join algebra-201
  uplive join algebra-201 --name "Ada" --no-device
  uplive join algebra-201 --domain staging.example.com`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinRoom(args[0])
	},
}

func joinRoom(roomID string) error {
	cfg, err := config.Load(config.Options{
		Domain:     flagDomain,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		CameraAddr: flagCamera,
		MicAddr:    flagMic,
		ScreenAddr: flagScreen,
		NoDevice:   flagNoDevice,
	})
	if err != nil {
		return err
	}

	identity := protocol.Identity{
		ID:   uuid.NewString(),
		Name: flagName,
		Role: protocol.RoleAttendee,
	}
	if identity.Name == "" {
		identity.Name = "guest-" + identity.ID[:8]
	}

	var devices media.Devices = media.RTPDevices{
		CameraAddr:     cfg.CameraAddr,
		MicrophoneAddr: cfg.MicAddr,
		ScreenAddr:     cfg.ScreenAddr,
	}
	if cfg.NoDevice {
		devices = media.StaticDevices{}
	}

	turnUser, turnPass := cfg.GetTURNCredentials()
	sess := session.New(session.Options{
		ServerURL: cfg.WebSocketURL,
		RoomID:    roomID,
		Identity:  identity,
		Devices:   devices,
		RTCConfig: session.RTCConfiguration(cfg.GetSTUNServers(), cfg.GetTURNServers(), turnUser, turnPass),
	})

	stopSpinner := ui.RunConnectionSpinner("Connecting to classroom...")
	startedAt := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = sess.Start(ctx)
	cancel()
	stopSpinner()
	if err != nil {
		return err
	}

	fmt.Println(ui.RoomBanner(roomID, cfg.GetRoomLink(roomID)))

	if err := ui.RunMeeting(sess, roomID, identity.ID); err != nil {
		sess.Leave()
		return err
	}
	sess.Leave()

	ui.RenderSessionSummary(ui.SessionSummary{
		RoomID:       roomID,
		Duration:     time.Since(startedAt),
		Participants: len(sess.Roster()),
		ChatMessages: len(sess.Messages()),
		Strokes:      len(sess.Board().Strokes()),
	})
	return nil
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVarP(&flagDomain, "domain", "d", "", "Relay domain")
	joinCmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	joinCmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	joinCmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	joinCmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	joinCmd.Flags().StringVarP(&flagName, "name", "n", "", "Display name")
	joinCmd.Flags().StringVar(&flagCamera, "camera", "", "Camera RTP listen address")
	joinCmd.Flags().StringVar(&flagMic, "mic", "", "Microphone RTP listen address")
	joinCmd.Flags().StringVar(&flagScreen, "screen", "", "Screen capture RTP listen address")
	joinCmd.Flags().BoolVar(&flagNoDevice, "no-device", false, "Join with silent synthetic tracks")
}
