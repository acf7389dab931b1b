package mockserver

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"go-access-console/internal/model"
)

const (
	busyNotice    = "Another command is already running. Cancel it first.\n"
	cancelledLine = "\n=== Command cancelled by user ===\n"
	cancelledCode = -15
	stepDelay     = 20 * time.Millisecond
)

type wsRequest struct {
	Action  string `json:"action"`
	Command string `json:"command"`
}

type wsResponse struct {
	Type       string `json:"type"`
	Message    string `json:"message,omitempty"`
	ReturnCode int    `json:"return_code"`
}

// handleCommands runs management commands over a websocket, one command per
// connection at a time, streaming stdout lines and a final return code.
func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	runner := &commandRunner{server: s, conn: conn}
	runner.loop()
}

type commandRunner struct {
	server *Server
	conn   *websocket.Conn

	writeMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc // non-nil while a command runs
}

func (cr *commandRunner) loop() {
	defer func() {
		cr.mu.Lock()
		if cr.cancel != nil {
			cr.cancel()
		}
		cr.mu.Unlock()
		_ = cr.conn.Close()
	}()

	for {
		var req wsRequest
		if err := cr.conn.ReadJSON(&req); err != nil {
			return
		}

		switch req.Action {
		case "start_command":
			cr.start(req.Command)
		case "cancel_command":
			cr.mu.Lock()
			if cr.cancel != nil {
				cr.cancel()
			}
			cr.mu.Unlock()
		}
	}
}

func (cr *commandRunner) start(commandLine string) {
	cr.mu.Lock()
	if cr.cancel != nil {
		cr.mu.Unlock()
		cr.stdout(busyNotice)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	cr.cancel = cancel
	cr.mu.Unlock()

	go func() {
		code := cr.run(ctx, commandLine)

		cr.mu.Lock()
		cr.cancel = nil
		cr.mu.Unlock()

		if ctx.Err() != nil {
			cr.stdout(cancelledLine)
			code = cancelledCode
		}
		cr.finished(code)
	}()
}

func (cr *commandRunner) run(ctx context.Context, commandLine string) int {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		cr.stdout("No command given.\n")
		return 1
	}

	name, args := fields[0], fields[1:]
	switch name {
	case "add_random_users":
		return cr.addRandomUsers(ctx, countArg(args, 50))
	case "add_softs":
		return cr.addPackages(ctx, countArg(args, 100))
	case "add_soft_access":
		return cr.addPackageAccess(ctx, countArg(args, 50))
	case "delete_all_softs":
		return cr.deleteAllPackages(ctx)
	case "delete_all_soft_access":
		return cr.deleteAllAccess(ctx)
	case "create_default_roles":
		return cr.createDefaultRoles(ctx)
	case "makemigrations", "migrate":
		return cr.noopMigration(ctx, name)
	default:
		cr.stdout(fmt.Sprintf("Unknown command: %s\n", name))
		return 1
	}
}

func (cr *commandRunner) addRandomUsers(ctx context.Context, count int) int {
	st := cr.server.store

	st.mu.Lock()
	role := st.roleByNameLocked("user")
	st.mu.Unlock()
	if role == nil {
		cr.stdout("Default role missing; run create_default_roles first.\n")
		return 1
	}

	for i := 0; i < count; i++ {
		if !cr.pause(ctx) {
			return 1
		}

		username := "user_" + uuid.NewString()[:8]
		st.mu.Lock()
		st.addUserLocked(&userRecord{Username: username, RoleID: role.ID})
		st.mu.Unlock()

		cr.stdout(fmt.Sprintf("Created user %s\n", username))
	}

	cr.stdout(fmt.Sprintf("Created %d users.\n", count))
	return 0
}

func (cr *commandRunner) addPackages(ctx context.Context, count int) int {
	st := cr.server.store

	for i := 0; i < count; i++ {
		if !cr.pause(ctx) {
			return 1
		}

		st.mu.Lock()
		rec := st.addPackageLocked("soft_" + uuid.NewString()[:8])
		st.mu.Unlock()

		cr.stdout(fmt.Sprintf("Created package %s\n", rec.Name))
	}

	cr.stdout(fmt.Sprintf("Created %d packages.\n", count))
	return 0
}

func (cr *commandRunner) addPackageAccess(ctx context.Context, count int) int {
	st := cr.server.store
	granted := 0

	for i := 0; i < count; i++ {
		if !cr.pause(ctx) {
			return 1
		}

		st.mu.Lock()
		users := st.sortedUsersLocked()
		packages := st.sortedPackagesLocked()
		if len(users) == 0 || len(packages) == 0 {
			st.mu.Unlock()
			cr.stdout("Nothing to grant: need at least one user and one package.\n")
			return 1
		}

		user := users[i%len(users)]
		pkg := packages[i%len(packages)]
		pkg.Members[user.ID] = struct{}{}
		st.mu.Unlock()

		granted++
		cr.stdout(fmt.Sprintf("Granted %s access to %s\n", user.Username, pkg.Name))
	}

	cr.stdout(fmt.Sprintf("Granted %d access entries.\n", granted))
	return 0
}

func (cr *commandRunner) deleteAllPackages(ctx context.Context) int {
	if !cr.pause(ctx) {
		return 1
	}

	st := cr.server.store
	st.mu.Lock()
	removed := len(st.packages)
	st.packages = map[int]*packageRecord{}
	st.mu.Unlock()

	cr.stdout(fmt.Sprintf("Deleted %d packages.\n", removed))
	return 0
}

func (cr *commandRunner) deleteAllAccess(ctx context.Context) int {
	if !cr.pause(ctx) {
		return 1
	}

	st := cr.server.store
	st.mu.Lock()
	for _, pkg := range st.packages {
		pkg.Members = map[int]struct{}{}
	}
	st.mu.Unlock()

	cr.stdout("Cleared all package access.\n")
	return 0
}

func (cr *commandRunner) createDefaultRoles(ctx context.Context) int {
	defaults := []struct {
		name string
		keys []string
	}{
		{"manager", []string{model.PermAddUsers, model.PermEditUsers, model.PermDeleteUsers}},
		{"support", []string{model.PermEditUsers}},
		{"viewer", nil},
	}

	st := cr.server.store
	for _, def := range defaults {
		if !cr.pause(ctx) {
			return 1
		}

		st.mu.Lock()
		if st.roleByNameLocked(def.name) != nil {
			st.mu.Unlock()
			cr.stdout(fmt.Sprintf("Role %s already exists, skipping\n", def.name))
			continue
		}

		granted := map[string]bool{}
		for _, key := range def.keys {
			granted[key] = true
		}
		st.addRoleLocked(def.name, func(key string) bool { return granted[key] })
		st.mu.Unlock()

		cr.stdout(fmt.Sprintf("Created role %s\n", def.name))
	}

	cr.stdout("Default roles in place.\n")
	return 0
}

func (cr *commandRunner) noopMigration(ctx context.Context, name string) int {
	lines := []string{
		"Operations to perform:\n",
		"  Apply all migrations: (none, in-memory backend)\n",
		"Running " + name + "...\n",
		"  No migrations to apply.\n",
	}

	for _, line := range lines {
		if !cr.pause(ctx) {
			return 1
		}
		cr.stdout(line)
	}

	return 0
}

// pause sleeps one step and reports false when the command was cancelled.
func (cr *commandRunner) pause(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(stepDelay):
		return true
	}
}

func (cr *commandRunner) stdout(message string) {
	cr.write(wsResponse{Type: "stdout", Message: message})
}

func (cr *commandRunner) finished(code int) {
	cr.write(wsResponse{Type: "finished", ReturnCode: code})
}

func (cr *commandRunner) write(msg wsResponse) {
	cr.writeMu.Lock()
	defer cr.writeMu.Unlock()
	_ = cr.conn.WriteJSON(msg)
}

func countArg(args []string, fallback int) int {
	if len(args) == 0 {
		return fallback
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return fallback
	}

	return n
}
