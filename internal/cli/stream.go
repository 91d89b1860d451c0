package cli

import (
	"fmt"
	"os"
	"time"

	websocketPkg "VisionAnalytica/pkg/websocket"
	"github.com/spf13/cobra"
)

type streamFlags struct {
	url      string
	interval time.Duration
	timeout  time.Duration
}

// streamCommand plays image files as consecutive frames against a running
// server and prints the replies that are still current.
func streamCommand(ctx *Context) *cobra.Command {
	var flags streamFlags

	cmd := &cobra.Command{
		Use:   "stream [image...]",
		Short: "Send images as frames to a running server's analysis stream",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := websocketPkg.Dial(cmd.Context(), websocketPkg.Config{URL: flags.url, Log: ctx.Log})
			if err != nil {
				return err
			}
			defer client.Close()

			var last uint64
			for i, path := range args {
				frame, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				if last, err = client.SendFrame(frame); err != nil {
					return err
				}
				if i < len(args)-1 && flags.interval > 0 {
					time.Sleep(flags.interval)
				}
			}

			deadline := time.After(flags.timeout)
			for {
				select {
				case reply, ok := <-client.Replies():
					if !ok {
						return fmt.Errorf("stream closed before frame %d was answered", last)
					}
					if err := ctx.printJSON(reply); err != nil {
						return err
					}
					if reply.Token >= last {
						return nil
					}
				case <-deadline:
					return fmt.Errorf("timed out waiting for frame %d", last)
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				}
			}
		},
	}

	cmd.Flags().StringVar(&flags.url, "url", "ws://localhost:3000/api/v1/analysis/ws", "Analysis stream endpoint")
	cmd.Flags().DurationVar(&flags.interval, "interval", 0, "Pause between frames")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 2*time.Minute, "How long to wait for the last frame's reply")

	return cmd
}
