package main

import (
	"fmt"
	"os"
	"time"

	"hawk-go/internal/app"
	"hawk-go/internal/hawk"

	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

func printUser(u *hawk.User) {
	birthday := "-"
	if !u.Birthday.IsZero() {
		birthday = u.Birthday.Format(dateLayout)
	}
	fmt.Printf("%s  %-16s  %-20s  %-13s  %s  registered %s\n",
		u.UUID, u.Login, u.Name, u.Sex, birthday,
		u.RegistrationDate.Format("2006-01-02 15:04:05"))
}

func printGroup(g *hawk.Group) {
	fmt.Printf("%s  %-24s  registered %s\n", g.UUID, g.Name, g.RegistrationDate.Format("2006-01-02 15:04:05"))
}

func printUsers(users []*hawk.User, empty string) {
	if len(users) == 0 {
		fmt.Println(empty)
		return
	}
	for _, u := range users {
		printUser(u)
	}
}

// profileFlags reads the name, sex and birthday flags shared by user add and
// user update.
func profileFlags(cmd *cobra.Command) (string, hawk.Sex, time.Time, error) {
	name, _ := cmd.Flags().GetString("name")
	sexFlag, _ := cmd.Flags().GetString("sex")
	birthdayFlag, _ := cmd.Flags().GetString("birthday")

	sex, err := hawk.ParseSex(sexFlag)
	if err != nil {
		return "", 0, time.Time{}, fmt.Errorf("invalid sex %q: %w", sexFlag, err)
	}
	var birthday time.Time
	if birthdayFlag != "" {
		birthday, err = time.Parse(dateLayout, birthdayFlag)
		if err != nil {
			return "", 0, time.Time{}, fmt.Errorf("invalid birthday: %w", err)
		}
	}
	return name, sex, birthday, nil
}

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add LOGIN",
	Short: "Register a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, sex, birthday, err := profileFlags(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, args, func(a *app.HawkApp) error {
			password, err := readPassphrase("Password: ")
			if err != nil {
				return err
			}
			u, err := a.Service().RegisterUser(args[0], password, name, sex, birthday)
			if err != nil {
				return err
			}
			printUser(u)
			return nil
		})
	},
}

var userFindCmd = &cobra.Command{
	Use:   "find UUID",
	Short: "Show a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.HawkApp) error {
			u, err := a.Service().FindUser(args[0])
			if err != nil {
				return err
			}
			printUser(u)
			return nil
		})
	},
}

var userAuthCmd = &cobra.Command{
	Use:   "auth LOGIN",
	Short: "Check a login and password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.HawkApp) error {
			password, err := readPassphrase("Password: ")
			if err != nil {
				return err
			}
			u, err := a.Service().Authenticate(args[0], password)
			if err != nil {
				return err
			}
			printUser(u)
			return nil
		})
	},
}

var userUpdateCmd = &cobra.Command{
	Use:   "update UUID",
	Short: "Change a user profile or password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, sex, birthday, err := profileFlags(cmd)
		if err != nil {
			return err
		}
		changePassword, _ := cmd.Flags().GetBool("password")
		return withApp(cmd, args, func(a *app.HawkApp) error {
			svc := a.Service()
			if changePassword {
				password, err := readPassphrase("New password: ")
				if err != nil {
					return err
				}
				if err := svc.ChangePassword(args[0], password); err != nil {
					return err
				}
			}
			if !cmd.Flags().Changed("name") && !cmd.Flags().Changed("sex") && !cmd.Flags().Changed("birthday") {
				return nil
			}
			current, err := svc.FindUser(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("name") {
				name = current.Name
			}
			if !cmd.Flags().Changed("sex") {
				sex = current.Sex
			}
			if !cmd.Flags().Changed("birthday") {
				birthday = current.Birthday
			}
			u, err := svc.UpdateProfile(args[0], name, sex, birthday)
			if err != nil {
				return err
			}
			printUser(u)
			return nil
		})
	},
}

var userRemoveCmd = &cobra.Command{
	Use:   "remove UUID",
	Short: "Remove a user with its contacts and memberships",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.HawkApp) error {
			if err := a.Service().RemoveUser(args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed user %s\n", args[0])
			return nil
		})
	},
}

var userGroupsCmd = &cobra.Command{
	Use:   "groups UUID",
	Short: "List the groups of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.HawkApp) error {
			groups, err := a.Service().UserGroups(args[0])
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				fmt.Println("No groups.")
				return nil
			}
			for _, g := range groups {
				printGroup(g)
			}
			return nil
		})
	},
}

// group command
var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage groups",
}

var groupAddCmd = &cobra.Command{
	Use:   "add NAME [USER_UUID...]",
	Short: "Create a group",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.HawkApp) error {
			g, err := a.Service().CreateGroup(args[0], args[1:]...)
			if err != nil {
				return err
			}
			printGroup(g)
			return nil
		})
	},
}

var groupRenameCmd = &cobra.Command{
	Use:   "rename UUID NAME",
	Short: "Rename a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.HawkApp) error {
			return a.Service().RenameGroup(args[0], args[1])
		})
	},
}

var groupRemoveCmd = &cobra.Command{
	Use:   "remove UUID",
	Short: "Remove a group with its members and messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.HawkApp) error {
			if err := a.Service().RemoveGroup(args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed group %s\n", args[0])
			return nil
		})
	},
}

var groupMembersCmd = &cobra.Command{
	Use:   "members UUID",
	Short: "List group members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.HawkApp) error {
			members, err := a.Service().Members(args[0])
			if err != nil {
				return err
			}
			printUsers(members, "No members.")
			return nil
		})
	},
}

var groupSetMembersCmd = &cobra.Command{
	Use:   "set-members UUID [USER_UUID...]",
	Short: "Replace the member list of a group",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.HawkApp) error {
			return a.Service().SetMembers(args[0], args[1:])
		})
	},
}

var groupAddUserCmd = &cobra.Command{
	Use:   "add-user UUID USER_UUID",
	Short: "Add a member",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.HawkApp) error {
			return a.Service().AddMember(args[0], args[1])
		})
	},
}

var groupRemoveUserCmd = &cobra.Command{
	Use:   "remove-user UUID USER_UUID",
	Short: "Remove a member",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.HawkApp) error {
			return a.Service().RemoveMember(args[0], args[1])
		})
	},
}

var groupClearCmd = &cobra.Command{
	Use:   "clear UUID",
	Short: "Remove all members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.HawkApp) error {
			return a.Service().ClearMembers(args[0])
		})
	},
}

// contact command
var contactCmd = &cobra.Command{
	Use:   "contact",
	Short: "Manage contacts",
}

var contactAddCmd = &cobra.Command{
	Use:   "add USER_UUID CONTACT_UUID",
	Short: "Make two users contacts of each other",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.HawkApp) error {
			return a.Service().AddContact(args[0], args[1])
		})
	},
}

var contactRemoveCmd = &cobra.Command{
	Use:   "remove USER_UUID CONTACT_UUID",
	Short: "Remove a contact on both sides",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.HawkApp) error {
			return a.Service().RemoveContact(args[0], args[1])
		})
	},
}

var contactListCmd = &cobra.Command{
	Use:   "list USER_UUID",
	Short: "List the contacts of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.HawkApp) error {
			contacts, err := a.Service().Contacts(args[0])
			if err != nil {
				return err
			}
			printUsers(contacts, "No contacts.")
			return nil
		})
	},
}

// message command
var messageCmd = &cobra.Command{
	Use:   "message",
	Short: "Post and read group messages",
}

var messagePostCmd = &cobra.Command{
	Use:   "post GROUP_UUID [TEXT]",
	Short: "Post a text message, or an image with --image",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		imagePath, _ := cmd.Flags().GetString("image")

		var data hawk.MessageData
		switch {
		case imagePath != "":
			b, err := os.ReadFile(imagePath)
			if err != nil {
				return fmt.Errorf("reading image: %w", err)
			}
			data = hawk.MessageData{Type: hawk.MessageImage, Bytes: b}
		case len(args) == 2:
			data = hawk.MessageData{Type: hawk.MessageText, Bytes: []byte(args[1])}
		default:
			return fmt.Errorf("either TEXT or --image is required")
		}

		return withApp(cmd, args, func(a *app.HawkApp) error {
			m, err := a.Service().PostMessage(args[0], data)
			if err != nil {
				return err
			}
			fmt.Printf("Posted message %s\n", m.UUID)
			return nil
		})
	},
}

var messageListCmd = &cobra.Command{
	Use:   "list GROUP_UUID",
	Short: "Show recent messages of a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		since, _ := cmd.Flags().GetDuration("since")
		return withApp(cmd, args, func(a *app.HawkApp) error {
			now := time.Now()
			msgs, err := a.Service().History(args[0], hawk.TimeRange{From: now.Add(-since), To: now})
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				fmt.Println("No messages.")
				return nil
			}
			for _, m := range msgs {
				body := string(m.Data.Bytes)
				if m.Data.Type != hawk.MessageText {
					body = fmt.Sprintf("<%s, %d bytes>", m.Data.Type, len(m.Data.Bytes))
				}
				fmt.Printf("%s  %s  %s\n", m.UUID, m.CreateTime.Format("2006-01-02 15:04:05"), body)
			}
			return nil
		})
	},
}

var messageRemoveCmd = &cobra.Command{
	Use:   "remove GROUP_UUID MESSAGE_UUID",
	Short: "Remove a message",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, args, func(a *app.HawkApp) error {
			return a.Service().RemoveMessage(args[1], args[0])
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{userAddCmd, userUpdateCmd} {
		c.Flags().String("name", "", "Display name")
		c.Flags().String("sex", "", "male, female or none")
		c.Flags().String("birthday", "", "Birthday as YYYY-MM-DD")
	}
	userUpdateCmd.Flags().Bool("password", false, "Prompt for a new password")
	userCmd.AddCommand(userAddCmd, userFindCmd, userAuthCmd, userUpdateCmd, userRemoveCmd, userGroupsCmd)

	groupCmd.AddCommand(groupAddCmd, groupRenameCmd, groupRemoveCmd, groupMembersCmd,
		groupSetMembersCmd, groupAddUserCmd, groupRemoveUserCmd, groupClearCmd)

	contactCmd.AddCommand(contactAddCmd, contactRemoveCmd, contactListCmd)

	messagePostCmd.Flags().String("image", "", "Post the contents of an image file")
	messageListCmd.Flags().Duration("since", 24*time.Hour, "How far back to list")
	messageCmd.AddCommand(messagePostCmd, messageListCmd, messageRemoveCmd)

	rootCmd.AddCommand(userCmd, groupCmd, contactCmd, messageCmd)
}
