package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"rescuelink/config"
	"rescuelink/models"
	"rescuelink/repositories"
	"rescuelink/services"
	"rescuelink/views"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
)

// cliSession is the client state for one CLI invocation. Credentials persist
// in Redis when REDIS_URL is set, otherwise in the credentials file.
type cliSession struct {
	container *services.Container
	notes     *views.NotificationLog
	redis     *redis.Client
}

func openCLI() *cliSession {
	s := &cliSession{notes: views.NewNotificationLog()}
	var tokens repositories.TokenRepository
	if s.redis = config.InitRedis(cfg); s.redis != nil {
		tokens = repositories.NewRedisTokenRepository(s.redis, "cli")
	} else {
		tokens = repositories.NewFileTokenRepository(credentialsPath)
	}
	s.container = newContainer(tokens)
	return s
}

func (s *cliSession) deps() views.Deps {
	return views.Deps{Services: s.container, Notifier: s.notes}
}

// flush prints the notifications produced so far.
func (s *cliSession) flush(w io.Writer) {
	for _, n := range s.notes.Drain() {
		mark := "ok"
		if n.Variant == models.VariantDestructive {
			mark = "error"
		}
		if n.Description != "" {
			fmt.Fprintf(w, "[%s] %s: %s\n", mark, n.Title, n.Description)
		} else {
			fmt.Fprintf(w, "[%s] %s\n", mark, n.Title)
		}
	}
}

func (s *cliSession) Close() {
	if s.redis != nil {
		s.redis.Close()
	}
}

type mountable interface {
	Mount(ctx context.Context, token string) (services.GuardDecision, error)
	Close()
}

// mountView mounts a portal with the stored credential and explains guard
// redirects in CLI terms.
func mountView[V mountable](ctx context.Context, s *cliSession, build func(views.Deps) V) (V, error) {
	v := build(s.deps())
	decision, err := v.Mount(ctx, "")
	switch decision.Outcome {
	case services.GuardRedirectLogin:
		v.Close()
		return v, fmt.Errorf("not logged in, run `rescuelink login` first")
	case services.GuardRedirectLanding:
		v.Close()
		return v, fmt.Errorf("%v (landing page: %s)", decision.Err, decision.Location)
	}
	if err != nil {
		v.Close()
	}
	return v, err
}

// portalCommand runs fn against an open CLI session and prints the
// notifications it produced, also on failure.
func portalCommand(fn func(cmd *cobra.Command, args []string, s *cliSession) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s := openCLI()
		defer s.Close()
		err := fn(cmd, args, s)
		s.flush(cmd.OutOrStdout())
		return err
	}
}

func parseIDs(args []string) ([]models.ID, error) {
	ids := make([]models.ID, 0, len(args))
	for _, arg := range args {
		id, err := models.ParseID(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func addPortalCommands(root *cobra.Command) {
	var email, password string
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and store the issued credentials",
		Args:  cobra.NoArgs,
		RunE: portalCommand(func(cmd *cobra.Command, args []string, s *cliSession) error {
			session, resp, err := s.container.Auth.Login(cmd.Context(), models.LoginRequest{Email: email, Password: password})
			if err != nil {
				return err
			}
			name := email
			if resp.User != nil {
				name = resp.User.DisplayName()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", name, session.Role())
			return nil
		}),
	}
	loginCmd.Flags().StringVar(&email, "email", "", "Account email")
	loginCmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = loginCmd.MarkFlagRequired("email")
	_ = loginCmd.MarkFlagRequired("password")

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored credentials",
		Args:  cobra.NoArgs,
		RunE: portalCommand(func(cmd *cobra.Command, args []string, s *cliSession) error {
			if err := s.container.Auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		}),
	}

	var register models.RegisterRequest
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: portalCommand(func(cmd *cobra.Command, args []string, s *cliSession) error {
			user, err := s.container.Auth.Register(cmd.Context(), register)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created account %d for %s\n", user.ID, user.DisplayName())
			return nil
		}),
	}
	registerCmd.Flags().StringVar(&register.Username, "username", "", "Username")
	registerCmd.Flags().StringVar(&register.Email, "email", "", "Email")
	registerCmd.Flags().StringVar(&register.Password, "password", "", "Password")
	registerCmd.Flags().StringVar(&register.CIN, "cin", "", "National identity number")
	registerCmd.Flags().StringVar(&register.FirstName, "first-name", "", "First name")
	registerCmd.Flags().StringVar(&register.LastName, "last-name", "", "Last name")
	registerCmd.Flags().StringVar(&register.Role, "role", string(models.RoleCitizen), "CITIZEN, RESPONDER or COORDINATOR")

	root.AddCommand(loginCmd, logoutCmd, registerCmd)
	root.AddCommand(citizenCommands()...)
	root.AddCommand(responderCommands()...)
	root.AddCommand(coordinatorCommands()...)
	root.AddCommand(chatCommand())
}

func citizenCommands() []*cobra.Command {
	var (
		urgency int
		address string
		locate  bool
	)
	reportCmd := &cobra.Command{
		Use:   "report <description>",
		Short: "Report an emergency",
		Args:  cobra.MinimumNArgs(1),
		RunE: portalCommand(func(cmd *cobra.Command, args []string, s *cliSession) error {
			v, err := mountView(cmd.Context(), s, views.NewCitizenView)
			if err != nil {
				return err
			}
			defer v.Close()

			v.SetDescription(strings.Join(args, " "))
			if err := v.SetUrgency(urgency); err != nil {
				return err
			}
			if locate || !cmd.Flags().Changed("lat") {
				if _, err := v.Locate(cmd.Context()); err != nil {
					return err
				}
			} else {
				v.SetLocation(models.Location{Latitude: cfg.DefaultLatitude, Longitude: cfg.DefaultLongitude, Address: address})
			}

			report, err := v.Submit(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report %d %s (%s)\n", report.ID, report.Status, report.UrgencyLabel())
			return nil
		}),
	}
	reportCmd.Flags().IntVar(&urgency, "urgency", views.DefaultUrgencyLevel, "Urgency level 1 (low) to 4 (critical)")
	reportCmd.Flags().StringVar(&address, "address", "", "Address of the incident")
	reportCmd.Flags().BoolVar(&locate, "locate", false, "Resolve the address of the current position")

	reportsCmd := &cobra.Command{
		Use:   "reports",
		Short: "List reports: your own as a citizen, all of them as a coordinator",
		Args:  cobra.NoArgs,
		RunE: portalCommand(func(cmd *cobra.Command, args []string, s *cliSession) error {
			var reports []models.EmergencyReport
			if session, err := s.container.Sessions.Current(cmd.Context()); err == nil && session.Role() == models.RoleCoordinator {
				v, err := mountView(cmd.Context(), s, views.NewCoordinatorView)
				if err != nil {
					return err
				}
				defer v.Close()
				reports = v.Emergencies()
			} else {
				v, err := mountView(cmd.Context(), s, views.NewCitizenView)
				if err != nil {
					return err
				}
				defer v.Close()
				reports = v.Reports()
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tURGENCY\tREPORTED\tDESCRIPTION")
			for _, r := range reports {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.Status, r.UrgencyLabel(), r.ReportedAt.Format("2006-01-02 15:04"), r.Description)
			}
			return w.Flush()
		}),
	}

	return []*cobra.Command{reportCmd, reportsCmd}
}

func responderCommands() []*cobra.Command {
	missionsCmd := &cobra.Command{
		Use:   "missions",
		Short: "List the missions assigned to you",
		Args:  cobra.NoArgs,
		RunE: portalCommand(func(cmd *cobra.Command, args []string, s *cliSession) error {
			v, err := mountView(cmd.Context(), s, views.NewResponderView)
			if err != nil {
				return err
			}
			defer v.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tINCIDENT\tNEXT")
			for _, m := range v.Missions() {
				next := "-"
				if status, ok := services.NextMissionStatus(m.Status); ok {
					next = string(status)
				}
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", m.ID, m.Status, m.IncidentRef(), next)
			}
			return w.Flush()
		}),
	}

	advanceCmd := &cobra.Command{
		Use:   "advance <mission-id> <status>",
		Short: "Move one of your missions to the next status",
		Args:  cobra.ExactArgs(2),
		RunE: portalCommand(func(cmd *cobra.Command, args []string, s *cliSession) error {
			id, err := models.ParseID(args[0])
			if err != nil {
				return fmt.Errorf("invalid mission id %q", args[0])
			}
			v, err := mountView(cmd.Context(), s, views.NewResponderView)
			if err != nil {
				return err
			}
			defer v.Close()
			return v.Advance(cmd.Context(), id, models.MissionStatus(strings.ToUpper(args[1])))
		}),
	}

	return []*cobra.Command{missionsCmd, advanceCmd}
}

// withCoordinator mounts the coordinator portal for one command.
func withCoordinator(fn func(ctx context.Context, v *views.CoordinatorView, args []string, out io.Writer) error) func(*cobra.Command, []string) error {
	return portalCommand(func(cmd *cobra.Command, args []string, s *cliSession) error {
		v, err := mountView(cmd.Context(), s, views.NewCoordinatorView)
		if err != nil {
			return err
		}
		defer v.Close()
		return fn(cmd.Context(), v, args, cmd.OutOrStdout())
	})
}

func coordinatorCommands() []*cobra.Command {
	assignCmd := &cobra.Command{
		Use:   "assign <emergency-id> <responder-id>...",
		Short: "Assign responders to an emergency",
		Args:  cobra.MinimumNArgs(2),
		RunE: withCoordinator(func(ctx context.Context, v *views.CoordinatorView, args []string, out io.Writer) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return v.Assign(ctx, ids[0], ids[1:]...)
		}),
	}

	assignAllCmd := &cobra.Command{
		Use:   "assign-all <emergency-id>",
		Short: "Assign every available responder to an emergency",
		Args:  cobra.ExactArgs(1),
		RunE: withCoordinator(func(ctx context.Context, v *views.CoordinatorView, args []string, out io.Writer) error {
			id, err := models.ParseID(args[0])
			if err != nil {
				return fmt.Errorf("invalid emergency id %q", args[0])
			}
			result, err := v.AssignAll(ctx, id)
			fmt.Fprintf(out, "Assigned %d, failed %d\n", len(result.Assigned), len(result.Failed))
			return err
		}),
	}

	statusCmd := &cobra.Command{
		Use:   "status <emergency|mission> <id> <status>",
		Short: "Set the status of an emergency or a mission",
		Args:  cobra.ExactArgs(3),
		RunE: withCoordinator(func(ctx context.Context, v *views.CoordinatorView, args []string, out io.Writer) error {
			id, err := models.ParseID(args[1])
			if err != nil {
				return fmt.Errorf("invalid id %q", args[1])
			}
			status := strings.ToUpper(args[2])
			switch args[0] {
			case "emergency":
				return v.UpdateEmergencyStatus(ctx, id, models.EmergencyStatus(status))
			case "mission":
				return v.UpdateMissionStatus(ctx, id, models.MissionStatus(status))
			}
			return fmt.Errorf("unknown target %q, expected emergency or mission", args[0])
		}),
	}

	urgencyCmd := &cobra.Command{
		Use:   "urgency <emergency-id> <LOW|MEDIUM|HIGH|CRITICAL>",
		Short: "Change the urgency of an emergency",
		Args:  cobra.ExactArgs(2),
		RunE: withCoordinator(func(ctx context.Context, v *views.CoordinatorView, args []string, out io.Writer) error {
			id, err := models.ParseID(args[0])
			if err != nil {
				return fmt.Errorf("invalid emergency id %q", args[0])
			}
			return v.UpdateUrgency(ctx, id, models.UrgencyLabel(strings.ToUpper(args[1])))
		}),
	}

	missionCmd := &cobra.Command{
		Use:   "mission",
		Short: "Manage missions",
	}
	missionCmd.AddCommand(&cobra.Command{
		Use:   "create <emergency-id> [responder-id]...",
		Short: "Open a mission for an emergency",
		Args:  cobra.MinimumNArgs(1),
		RunE: withCoordinator(func(ctx context.Context, v *views.CoordinatorView, args []string, out io.Writer) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			mission, err := v.CreateMission(ctx, ids[0], ids[1:]...)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Mission %d %s\n", mission.ID, mission.Status)
			return nil
		}),
	})

	dashboardCmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the coordinator metrics",
		Args:  cobra.NoArgs,
		RunE: withCoordinator(func(ctx context.Context, v *views.CoordinatorView, args []string, out io.Writer) error {
			m := v.Metrics()
			fmt.Fprintf(out, "Active: %d\nIn progress: %d\nResolved: %d\nAvailable teams: %d\n", m.Active, m.InProgress, m.Resolved, m.AvailableTeams)
			return nil
		}),
	}

	return []*cobra.Command{assignCmd, assignAllCmd, statusCmd, urgencyCmd, missionCmd, dashboardCmd}
}

func printMessages(out io.Writer, messages []models.Message) {
	for _, m := range messages {
		fmt.Fprintf(out, "%s  %-11s %s\n", m.Timestamp.Format("15:04"), m.Sender, m.Content)
	}
}

func chatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <emergency|mission> <id> [message...]",
		Short: "Show a chat thread, or post to it when a message is given",
		Args:  cobra.MinimumNArgs(2),
		RunE: portalCommand(func(cmd *cobra.Command, args []string, s *cliSession) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			id, err := models.ParseID(args[1])
			if err != nil {
				return fmt.Errorf("invalid id %q", args[1])
			}
			content := strings.Join(args[2:], " ")

			session, err := s.container.Sessions.Current(ctx)
			if err != nil {
				return fmt.Errorf("not logged in, run `rescuelink login` first")
			}

			switch {
			case session.Role() == models.RoleResponder && args[0] == "mission":
				v, err := mountView(ctx, s, views.NewResponderView)
				if err != nil {
					return err
				}
				defer v.Close()
				if err := v.Select(ctx, id); err != nil {
					return err
				}
				if content != "" {
					if _, err := v.SendMessage(ctx, content); err != nil {
						return err
					}
				}
				printMessages(out, v.Messages())
				return nil

			case session.Role() == models.RoleCoordinator:
				v, err := mountView(ctx, s, views.NewCoordinatorView)
				if err != nil {
					return err
				}
				defer v.Close()
				var messages []models.Message
				switch args[0] {
				case "emergency":
					if err := v.SelectEmergency(ctx, id); err != nil {
						return err
					}
					if content != "" {
						if _, err := v.SendEmergencyMessage(ctx, content); err != nil {
							return err
						}
					}
					_, messages = v.EmergencyMessages()
				case "mission":
					if err := v.SelectMission(ctx, id); err != nil {
						return err
					}
					if content != "" {
						if _, err := v.SendMissionMessage(ctx, content); err != nil {
							return err
						}
					}
					_, messages = v.MissionMessages()
				default:
					return fmt.Errorf("unknown thread %q, expected emergency or mission", args[0])
				}
				printMessages(out, messages)
				return nil
			}
			return fmt.Errorf("chat %s is not available for role %s", args[0], session.Role())
		}),
	}
}
