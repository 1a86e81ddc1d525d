package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/MonishPuttu/internhub-chat/internal/chat"
	"github.com/MonishPuttu/internhub-chat/internal/services/directory"
	"github.com/MonishPuttu/internhub-chat/internal/state"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var chatCmd = &cobra.Command{
	Use:   "chat [room-id]",
	Short: "Join a room and chat. With no argument, rejoins the last room",
	Args:  cobra.MaximumNArgs(1),
	Run:   runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(_ *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := state.DefaultStore()
	if err != nil {
		log.Fatal().Err(err).Send()
	}
	token := store.Token()
	if token == "" {
		log.Fatal().Msg("not logged in. run: internhub-chat login <token>")
	}

	dir := directory.NewClient(viper.GetString("servers.api-origin"), token)
	conn := chat.NewConn(viper.GetString("servers.chat-origin"), log.Logger)
	if d := viper.GetDuration("chat.retry-delay"); d > 0 {
		conn.RetryDelay = d
	}
	if n := viper.GetInt("chat.max-retries"); n > 0 {
		conn.MaxRetries = n
	}

	sess := chat.NewSession(conn, dir, store, log.Logger)
	if d := viper.GetDuration("chat.pending-timeout"); d > 0 {
		sess.PendingTimeout = d
	}
	defer sess.Close()
	defer conn.Close()

	render := newRenderer(sess)
	sess.OnUpdate = render.update

	if err := sess.Connect(ctx); err != nil {
		log.Fatal().Err(err).Send()
	}
	roomID := sess.ActiveRoom() // the persisted room, if Connect resynced one
	if len(args) == 1 {
		roomID = args[0]
	}
	if roomID == "" {
		log.Fatal().Msg("no room to rejoin. pass a room id or create one with: internhub-chat rooms create <name>")
	}
	if err := sess.JoinRoom(ctx, roomID); err != nil {
		log.Fatal().Err(err).Send()
	}
	fmt.Printf("Joined room %s. Type a message, /leave, or /quit.\n", sess.ActiveRoom())

	go readInput(ctx, sess, dir, stop)
	<-ctx.Done()
	sess.LeaveRoom()
}

// readInput runs the interactive loop: plain lines are sent to the active
// room, slash commands drive the session.
func readInput(ctx context.Context, sess *chat.Session, dir *directory.Client, quit func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			quit()
			return
		case line == "/leave":
			sess.LeaveRoom()
			fmt.Println("Left the room")
		case line == "/members":
			for _, m := range sess.Members() {
				fmt.Printf("  %s (%s)\n", m.Name, m.ID)
			}
		case line == "/rooms":
			rooms, err := dir.ListRooms(ctx)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			for _, r := range rooms {
				fmt.Printf("  %s\t%s\n", r.ID, r.Name)
			}
		case strings.HasPrefix(line, "/join "):
			if err := sess.JoinRoom(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/join "))); err != nil {
				fmt.Println("error:", err)
			}
		case strings.HasPrefix(line, "/create "):
			if err := sess.CreateRoom(ctx, strings.TrimPrefix(line, "/create ")); err != nil {
				fmt.Println("error:", err)
			}
		default:
			if err := sess.Send(line); err != nil {
				fmt.Println("error:", err)
			}
		}
	}
	quit() // EOF
}

// renderer prints messages as they land in the log, plus status changes and
// error-slot contents. Tracks what was already printed by durable id.
type renderer struct {
	sess *chat.Session

	mu      sync.Mutex
	printed map[string]struct{}
	status  chat.Status
	lastErr string
}

func newRenderer(sess *chat.Session) *renderer {
	return &renderer{
		sess:    sess,
		printed: make(map[string]struct{}),
		status:  chat.StatusDisconnected,
	}
}

func (r *renderer) update() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st := r.sess.Status(); st != r.status {
		r.status = st
		if st != chat.StatusConnected {
			fmt.Printf("-- %s --\n", st)
		}
	}
	if msg := r.sess.Err(); msg != "" && msg != r.lastErr {
		r.lastErr = msg
		fmt.Println("error:", msg)
	}

	for _, m := range r.sess.Messages() {
		if _, done := r.printed[m.ID]; done {
			continue
		}
		// placeholders are reprinted once reconciled under their durable id
		if m.Pending() && !m.Failed {
			continue
		}
		r.printed[m.ID] = struct{}{}
		at := time.UnixMilli(m.CreatedAt).Format(time.Kitchen)
		if m.Failed {
			fmt.Printf("[%s] %s: %s (failed to send)\n", at, m.SenderID, m.Text)
			continue
		}
		fmt.Printf("[%s] %s: %s\n", at, m.SenderID, m.Text)
	}
}
