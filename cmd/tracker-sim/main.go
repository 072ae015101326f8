package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"saferide/go-backend/internal/geometry"
	"saferide/go-backend/internal/handlers"
	"saferide/go-backend/internal/logging"
	"saferide/go-backend/internal/models"
	"saferide/go-backend/internal/services"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	passStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type reply struct {
	Type    string                 `json:"type"`
	Payload handlers.StatusPayload `json:"payload"`
}

func main() {
	agentURL := pflag.String("agent", "ws://localhost:8090/ws", "agent tracker link")
	grpcAddr := pflag.String("grpc", "localhost:50052", "agent gRPC health address, empty to skip the check")
	name := pflag.String("scenario", "drowsy", "scenario to play: "+strings.Join(scenarioNames(), ", "))
	fps := pflag.Int("fps", 30, "frames per second")
	quit := pflag.Bool("quit", false, "send QUIT to the agent when done")
	level := pflag.String("log-level", "INFO", "log level")
	pflag.Parse()

	logging.Setup(*level, "dev")

	sc, err := lookup(*name)
	if err != nil {
		log.Fatal().Err(err).Msg("bad scenario")
	}
	if *fps <= 0 {
		*fps = 30
	}

	fmt.Println(titleStyle.Render("SafeRide tracker simulator"))
	fmt.Printf("scenario %s: %s\n", *name, sc.description)

	if *grpcAddr != "" {
		if err := checkHealth(*grpcAddr); err != nil {
			log.Fatal().Err(err).Msg("agent is not healthy")
		}
	}

	conn, _, err := websocket.DefaultDialer.Dial(*agentURL, nil)
	if err != nil {
		log.Fatal().Err(err).Str("url", *agentURL).Msg("could not reach agent")
	}
	defer conn.Close()

	frames := sc.frames(geometry.MediaPipeLayout)
	last, counts, err := play(conn, frames, time.Second/time.Duration(*fps))
	if err != nil {
		log.Fatal().Err(err).Msg("scenario aborted")
	}

	if *quit {
		if err := conn.WriteJSON(handlers.TrackerMessage{Type: "QUIT"}); err != nil {
			log.Warn().Err(err).Msg("could not send QUIT")
		}
	}

	fmt.Printf("frames sent: %d\n", len(frames))
	for rule, n := range counts {
		fmt.Printf("  %-12s %d\n", rule, n)
	}
	if last.Status != sc.expect {
		fmt.Println(failStyle.Render(fmt.Sprintf("FAIL: final status %s, expected %s", last.Status, sc.expect)))
		os.Exit(1)
	}
	fmt.Println(passStyle.Render(fmt.Sprintf("PASS: final status %s (rule %s)", last.Status, last.Rule)))
}

func checkHealth(addr string) error {
	hc, err := services.NewHealthClient(addr)
	if err != nil {
		return err
	}
	defer hc.Close()

	status, err := hc.Check(context.Background(), "")
	if err != nil {
		return err
	}
	log.Info().Str("addr", addr).Str("status", status.String()).Msg("agent health")
	return nil
}

// play streams frames at the given period and waits for the reply to the
// last one. It returns that reply and a count of replies per rule.
func play(conn *websocket.Conn, frames []models.LandmarkSet, period time.Duration) (handlers.StatusPayload, map[string]int, error) {
	counts := make(map[string]int)
	total := uint64(len(frames))

	replies := make(chan handlers.StatusPayload, 64)
	readErr := make(chan error, 1)
	go func() {
		for {
			var msg reply
			if err := conn.ReadJSON(&msg); err != nil {
				readErr <- err
				return
			}
			switch msg.Type {
			case "WELCOME":
				log.Debug().Msg("agent says hello")
			case "STATUS":
				replies <- msg.Payload
			}
		}
	}()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for i, points := range frames {
		<-ticker.C
		msg := handlers.TrackerMessage{Type: "LANDMARKS", Points: points, Sequence: uint64(i + 1)}
		if points == nil {
			msg.Type = "NO_FACE"
		}
		if err := conn.WriteJSON(msg); err != nil {
			return handlers.StatusPayload{}, counts, fmt.Errorf("send frame %d: %w", i+1, err)
		}
	}

	timeout := time.After(5 * time.Second)
	for {
		select {
		case st := <-replies:
			counts[st.Rule]++
			if st.Sequence == total {
				return st, counts, nil
			}
		case err := <-readErr:
			return handlers.StatusPayload{}, counts, fmt.Errorf("read reply: %w", err)
		case <-timeout:
			return handlers.StatusPayload{}, counts, fmt.Errorf("no reply to frame %d", total)
		}
	}
}
