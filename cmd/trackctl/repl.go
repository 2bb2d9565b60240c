package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vantapoint/trackcore/trackcore/feeder"
	"github.com/vantapoint/trackcore/trackcore/handler"
	"github.com/vantapoint/trackcore/trackcore/metadata"
)

// printListener renders handler.Listener callbacks to stdout, the
// demo-loop equivalent of the teacher's fmt.Println status lines in
// examples/micro-client.
type printListener struct{}

func (printListener) StartedLoading(h *handler.TrackHandler) {
	fmt.Println("loading...")
}

func (printListener) FinishedLoading(h *handler.TrackHandler, pos int, play bool) {
	fmt.Printf("loaded, position=%dms play=%v\n", pos, play)
}

func (printListener) LoadingError(h *handler.TrackHandler, id metadata.TrackID, err error) {
	fmt.Printf("load failed for %s: %v\n", id, err)
}

func (printListener) EndOfTrack(h *handler.TrackHandler) {
	fmt.Println("end of track")
}

func (printListener) PreloadNextTrack(h *handler.TrackHandler) {
	fmt.Println("preload next track")
}

// newRootCmd builds the cobra command tree: invoked with no arguments it
// starts an interactive loop over stdin, re-parsing each line through
// the same subcommand tree, mirroring the teacher's examples/micro-client
// REPL while keeping cobra's flag parsing and usage text for each verb.
func newRootCmd() *cobra.Command {
	catalog := newFakeCatalog()
	h := handler.New(&feeder.StreamFeeder{
		Metadata: catalog,
		Keys:     catalog,
		Channel:  catalog,
	}, printListener{})

	root := &cobra.Command{
		Use:   "trackctl",
		Short: "Demo CLI driving one handler.TrackHandler against in-memory fakes.",
		Run: func(cmd *cobra.Command, args []string) {
			runREPL(h)
		},
	}

	root.AddCommand(subcommands(h)...)
	return root
}

func subcommands(h *handler.TrackHandler) []*cobra.Command {
	var play bool
	var posMS int

	load := &cobra.Command{
		Use:   "load <base62-id>",
		Short: "Load a track by its Spotify-style base-62 id.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := metadata.ParseBase62(args[0])
			return h.SendLoad(id, play, posMS)
		},
	}
	load.Flags().BoolVar(&play, "play", false, "start playing as soon as loading finishes")
	load.Flags().IntVar(&posMS, "pos", 0, "initial seek position in milliseconds")

	playCmd := &cobra.Command{
		Use:   "play",
		Short: "Resume or start playback of the loaded track.",
		RunE:  func(cmd *cobra.Command, args []string) error { return h.SendPlay() },
	}

	pause := &cobra.Command{
		Use:   "pause",
		Short: "Pause playback without releasing the loaded track.",
		RunE:  func(cmd *cobra.Command, args []string) error { return h.SendPause() },
	}

	seek := &cobra.Command{
		Use:   "seek <ms>",
		Short: "Seek to an absolute position in milliseconds.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ms, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("seek: %w", err)
			}
			return h.SendSeek(ms)
		},
	}

	stop := &cobra.Command{
		Use:   "stop",
		Short: "Stop playback and terminate the handler.",
		RunE:  func(cmd *cobra.Command, args []string) error { return h.SendStop() },
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Print the handler's current state and position.",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("state=%s position=%dms\n", h.State(), h.Position())
			return nil
		},
	}

	return []*cobra.Command{load, playCmd, pause, seek, stop, status}
}

func runREPL(h *handler.TrackHandler) {
	fmt.Println("trackctl demo — load <id> [--play], play, pause, seek <ms>, stop, status, exit")

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			return
		}

		lineCmd := &cobra.Command{Use: "trackctl"}
		lineCmd.AddCommand(subcommands(h)...)
		lineCmd.SetArgs(fields)
		if err := lineCmd.Execute(); err != nil {
			fmt.Println("error:", err)
		}
	}
}
