// Package console is the interactive operator frontend. It is presentation
// glue only: parsing lines, printing tables, and delegating to the auth,
// admin, reconcile and command packages.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"go-access-console/internal/admin"
	"go-access-console/internal/api"
	"go-access-console/internal/auth"
	"go-access-console/internal/command"
	"go-access-console/internal/event"
	"go-access-console/internal/model"
	"go-access-console/pkg/apierror"
)

type Console struct {
	auth      *auth.State
	directory *admin.Directory
	client    *api.Client
	channel   *command.Channel
	bus       event.Bus
	logger    *slog.Logger

	in  *bufio.Scanner
	out io.Writer

	// cached directory listing backing the optimistic permission toggles
	users []model.User
}

func New(
	authState *auth.State,
	directory *admin.Directory,
	client *api.Client,
	channel *command.Channel,
	bus event.Bus,
	in io.Reader,
	out io.Writer,
	logger *slog.Logger,
) *Console {
	if logger == nil {
		logger = slog.Default()
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	return &Console{
		auth:      authState,
		directory: directory,
		client:    client,
		channel:   channel,
		bus:       bus,
		logger:    logger,
		in:        scanner,
		out:       out,
	}
}

// Run drives the main loop until EOF, "exit", or context cancellation.
func (c *Console) Run(ctx context.Context) error {
	c.printf("access console — type 'help' for commands\n")

	c.printf("initializing session...\n")
	c.auth.Initialize(ctx)
	c.printStatus()

	events, unsubscribe := c.bus.Subscribe()
	defer unsubscribe()
	go c.watchEvents(ctx, events)

	for {
		c.prompt()
		line, ok := c.readLine(ctx)
		if !ok {
			return nil
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if fields[0] == "exit" || fields[0] == "quit" {
			return nil
		}

		c.dispatch(ctx, fields[0], fields[1:])
	}
}

func (c *Console) dispatch(ctx context.Context, cmd string, args []string) {
	var err error
	switch cmd {
	case "help":
		c.printHelp()
	case "whoami":
		c.printStatus()
	case "login":
		err = c.cmdLogin(ctx, args)
	case "register":
		err = c.cmdRegister(ctx, args)
	case "logout":
		c.auth.Logout()
		c.printf("logged out\n")
	case "reg-roles":
		err = c.cmdRegistrationRoles(ctx)
	case "stats":
		err = c.cmdStats(ctx)
	case "roles":
		err = c.cmdRoles(ctx)
	case "permissions":
		err = c.cmdPermissions(ctx)
	case "role-add":
		err = c.cmdRoleAdd(ctx, args)
	case "role-del":
		err = c.cmdRoleDelete(ctx, args)
	case "users":
		err = c.cmdUsers(ctx)
	case "user-add":
		err = c.cmdUserAdd(ctx, args)
	case "user-del":
		err = c.cmdUserDelete(ctx, args)
	case "user-perm":
		err = c.cmdUserPermission(ctx, args)
	case "packages":
		err = c.cmdPackages(ctx)
	case "access":
		err = c.cmdAccess(ctx, args)
	case "shell":
		err = c.cmdShell(ctx)
	default:
		c.printf("unknown command %q, try 'help'\n", cmd)
	}

	if err != nil {
		c.printError(err)
	}
}

func (c *Console) printHelp() {
	c.printf(`session
  login <username> <password>      authenticate
  register <user> <pass> <role>    create an account and sign in
  reg-roles                        roles available for registration
  logout                           drop the local session
  whoami                           current session state

directory
  stats                            role/user/package counts
  roles                            list roles with their permissions
  permissions                      assignable permission catalog
  role-add <name> [key ...]        create role granting the listed keys
  role-del <name>                  delete a role
  users                            list users
  user-add <username> <role>       create a directory user
  user-del <id>                    delete a user
  user-perm <id> <key>             toggle a permission on the user's role

packages
  packages                         list packages and their access lists
  access <package-id>              open the access editor

commands
  shell                            open the streamed command shell

exit                               leave the console
`)
}

func (c *Console) cmdLogin(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: login <username> <password>")
	}

	if err := c.auth.Login(ctx, args[0], args[1]); err != nil {
		return err
	}

	c.printStatus()
	return nil
}

func (c *Console) cmdRegister(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: register <username> <password> <role> [first] [last]")
	}

	reg := model.Registration{Username: args[0], Password: args[1], Role: args[2]}
	if len(args) > 3 {
		reg.FirstName = args[3]
	}
	if len(args) > 4 {
		reg.LastName = args[4]
	}

	if err := c.auth.Register(ctx, reg); err != nil {
		return err
	}

	c.printStatus()
	return nil
}

func (c *Console) cmdRegistrationRoles(ctx context.Context) error {
	roles, err := c.client.RegistrationRoles(ctx, true)
	if err != nil {
		return err
	}

	for _, role := range roles {
		c.printf("  %s\n", role.Name)
	}
	return nil
}

func (c *Console) cmdStats(ctx context.Context) error {
	stats, err := c.directory.Statistics(ctx)
	if err != nil {
		return err
	}

	c.printf("roles: %d  users: %d  packages: %d\n", stats.RolesCount, stats.UsersCount, stats.PackagesCount)
	return nil
}

func (c *Console) cmdRoles(ctx context.Context) error {
	roles, err := c.directory.Roles(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tROLE\tGRANTED")
	for _, role := range roles {
		granted := make([]string, 0, len(role.Permissions))
		for _, perm := range role.Permissions {
			if perm.Allowed {
				granted = append(granted, perm.Key)
			}
		}
		sort.Strings(granted)
		fmt.Fprintf(tw, "%d\t%s\t%s\n", role.ID, role.Name, strings.Join(granted, ","))
	}
	return tw.Flush()
}

func (c *Console) cmdPermissions(ctx context.Context) error {
	perms, err := c.directory.AvailablePermissions(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tDESCRIPTION")
	for _, perm := range perms {
		fmt.Fprintf(tw, "%s\t%s\n", perm.Key, perm.Description)
	}
	return tw.Flush()
}

func (c *Console) cmdRoleAdd(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: role-add <name> [permission-key ...]")
	}

	perms := make([]model.Permission, 0, len(args)-1)
	for _, key := range args[1:] {
		perms = append(perms, model.Permission{Key: key, Allowed: true})
	}

	role, err := c.directory.CreateRole(ctx, model.RoleInput{Name: args[0], Permissions: perms})
	if err != nil {
		return err
	}

	c.printf("created role %q (id %d)\n", role.Name, role.ID)
	return nil
}

func (c *Console) cmdRoleDelete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: role-del <name>")
	}

	if err := c.directory.DeleteRole(ctx, args[0]); err != nil {
		return err
	}

	c.printf("deleted role %q\n", args[0])
	return nil
}

func (c *Console) cmdUsers(ctx context.Context) error {
	users, err := c.directory.Users(ctx)
	if err != nil {
		return err
	}
	c.users = users

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tNAME\tROLE")
	for _, user := range users {
		name := strings.TrimSpace(user.FirstName + " " + user.LastName)
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", user.ID, user.Username, name, user.Role.Name)
	}
	return tw.Flush()
}

func (c *Console) cmdUserAdd(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: user-add <username> <role> [first] [last] [email]")
	}

	input := model.NewUser{Username: args[0], Role: args[1]}
	if len(args) > 2 {
		input.FirstName = args[2]
	}
	if len(args) > 3 {
		input.LastName = args[3]
	}
	if len(args) > 4 {
		input.Email = args[4]
	}

	user, err := c.directory.CreateUser(ctx, input)
	if err != nil {
		return err
	}

	c.printf("created user %q (id %d)\n", user.Username, user.ID)
	return nil
}

func (c *Console) cmdUserDelete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: user-del <id>")
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.New("usage: user-del <id>")
	}

	if err := c.directory.DeleteUser(ctx, id); err != nil {
		return err
	}

	c.printf("deleted user %d\n", id)
	return nil
}

// cmdUserPermission toggles optimistically against the cached user list, so
// the printed table flips immediately and flips back if the backend rejects.
func (c *Console) cmdUserPermission(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: user-perm <id> <permission-key>")
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.New("usage: user-perm <id> <permission-key>")
	}

	if c.users == nil {
		users, err := c.directory.Users(ctx)
		if err != nil {
			return err
		}
		c.users = users
	}

	if err := c.directory.TogglePermission(ctx, c.users, id, args[1]); err != nil {
		return err
	}

	c.printf("toggled %s for user %d\n", args[1], id)
	return nil
}

func (c *Console) cmdPackages(ctx context.Context) error {
	packages, err := c.directory.Packages(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPACKAGE\tACCESS")
	for _, pkg := range packages {
		names := make([]string, 0, len(pkg.UsersWithAccess))
		for _, user := range pkg.UsersWithAccess {
			names = append(names, user.Username)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", pkg.ID, pkg.Name, strings.Join(names, ","))
	}
	return tw.Flush()
}

func (c *Console) watchEvents(ctx context.Context, events <-chan event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if e.Type == event.TypeSessionExpired {
				c.printf("\n! session expired, please login again\n")
			}
		}
	}
}

func (c *Console) printStatus() {
	switch c.auth.Status() {
	case auth.StatusAuthenticated:
		user, _ := c.auth.CurrentUser()
		c.printf("signed in as %s (role %s)\n", user.Username, user.CurrentRole.Name)
	default:
		c.printf("not signed in\n")
	}
}

func (c *Console) printError(err error) {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) && apiErr.HasFields() {
		c.printf("rejected:\n")
		keys := make([]string, 0, len(apiErr.Fields))
		for key := range apiErr.Fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			c.printf("  %s: %s\n", key, strings.Join(apiErr.Fields[key], "; "))
		}
		return
	}

	c.printf("error: %v\n", err)
}

func (c *Console) prompt() {
	c.printf("> ")
}

func (c *Console) readLine(ctx context.Context) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	if !c.in.Scan() {
		return "", false
	}

	return strings.TrimSpace(c.in.Text()), true
}

func (c *Console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}
