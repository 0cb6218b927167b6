package main

import (
	"fmt"

	"gv-go/internal/app"
	"gv-go/internal/gv"

	"github.com/spf13/cobra"
)

func listQuery(cmd *cobra.Command, filters ...string) gv.ListQuery {
	page, _ := cmd.Flags().GetInt("page")
	q := gv.ListQuery{Page: page, Filters: map[string]string{}}
	for _, name := range filters {
		if v, _ := cmd.Flags().GetString(name); v != "" {
			q.Filters[name] = v
		}
	}
	return q
}

// changedFields collects the flags the user actually set, keyed by API field.
func changedFields(cmd *cobra.Command, flagToField map[string]string) map[string]any {
	fields := make(map[string]any)
	for flag, field := range flagToField {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		switch f.Value.Type() {
		case "int64":
			v, _ := cmd.Flags().GetInt64(flag)
			fields[field] = v
		default:
			fields[field] = f.Value.String()
		}
	}
	return fields
}

// donation command
var donationCmd = &cobra.Command{
	Use:     "donation",
	Aliases: []string{"donations"},
	Short:   "Browse and manage donation events",
}

var donationFields = map[string]string{
	"title":       "title",
	"description": "description",
	"goal":        "goal_amount",
	"location":    "location_id",
}

var donationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List donation events",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("ListDonations", func(a *app.GVApp) error {
			l, err := a.Service().Donations.List(cmd.Context(), listQuery(cmd, "status"))
			if err != nil {
				return err
			}
			printListing(l, donationRow, "No donation events.")
			return nil
		})
	},
}

var donationShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a donation event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp("ShowDonation", func(a *app.GVApp) error {
			d, err := a.Service().Donations.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if d == nil {
				return notFound("donation", id)
			}
			fmt.Printf("#%d %s\n", d.ID, d.Title)
			fmt.Printf("Raised:  %s of %s\n", amount(d.CurrentAmount), amount(d.GoalAmount))
			fmt.Printf("Status:  %s\n", d.Status)
			fmt.Printf("Created: %s\n", shortDate(d.CreatedAt))
			if d.ImageURL != "" {
				fmt.Printf("Image:   %s\n", d.ImageURL)
			}
			if d.Description != "" {
				fmt.Printf("\n%s\n", d.Description)
			}
			return nil
		})
	},
}

var donationCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a donation event",
	RunE: func(cmd *cobra.Command, args []string) error {
		image, _ := cmd.Flags().GetString("image")
		return withApp("CreateDonation", func(a *app.GVApp) error {
			p, err := a.Payload(changedFields(cmd, donationFields), map[string]string{"image": image})
			if err != nil {
				return err
			}
			d, err := a.Service().Donations.Create(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Printf("Created donation #%d\n", d.ID)
			return nil
		})
	},
}

var donationUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Update a donation event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		image, _ := cmd.Flags().GetString("image")
		return withApp("UpdateDonation", func(a *app.GVApp) error {
			p, err := a.Payload(changedFields(cmd, donationFields), map[string]string{"image": image})
			if err != nil {
				return err
			}
			d, err := a.Service().Donations.Update(cmd.Context(), id, p)
			if err != nil {
				return err
			}
			fmt.Printf("Updated donation #%d\n", d.ID)
			return nil
		})
	},
}

var donationDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a donation event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp("DeleteDonation", func(a *app.GVApp) error {
			if err := a.Service().Donations.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("Deleted donation #%d\n", id)
			return nil
		})
	},
}

var donationDonateCmd = &cobra.Command{
	Use:   "donate ID AMOUNT",
	Short: "Give to a donation event",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		amt, err := parseID(args[1])
		if err != nil {
			return fmt.Errorf("invalid amount %q", args[1])
		}
		return withApp("Donate", func(a *app.GVApp) error {
			d, err := a.Service().Donate(cmd.Context(), id, amt)
			if err != nil {
				return err
			}
			fmt.Printf("Thank you! %s now has %s of %s.\n", d.Title, amount(d.CurrentAmount), amount(d.GoalAmount))
			return nil
		})
	},
}

// request command
var requestCmd = &cobra.Command{
	Use:     "request",
	Aliases: []string{"requests"},
	Short:   "Browse and manage help requests",
}

var requestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List help requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("ListRequests", func(a *app.GVApp) error {
			l, err := a.Service().Requests.List(cmd.Context(), listQuery(cmd, "status"))
			if err != nil {
				return err
			}
			printListing(l, requestRow, "No help requests.")
			return nil
		})
	},
}

var requestShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a help request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp("ShowRequest", func(a *app.GVApp) error {
			r, err := a.Service().Requests.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if r == nil {
				return notFound("request", id)
			}
			fmt.Printf("#%d %s\n", r.ID, r.Title)
			fmt.Printf("Needed:  %s\n", amount(r.AmountNeeded))
			fmt.Printf("Status:  %s\n", r.Status)
			fmt.Printf("Created: %s\n", shortDate(r.CreatedAt))
			if r.Description != "" {
				fmt.Printf("\n%s\n", r.Description)
			}
			return nil
		})
	},
}

var requestCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Ask for help",
	RunE: func(cmd *cobra.Command, args []string) error {
		fields := changedFields(cmd, map[string]string{
			"title":       "title",
			"description": "description",
			"amount":      "amount_needed",
			"location":    "location_id",
		})
		return withApp("CreateRequest", func(a *app.GVApp) error {
			r, err := a.Service().Requests.Create(cmd.Context(), gv.Payload{Fields: fields})
			if err != nil {
				return err
			}
			fmt.Printf("Created request #%d\n", r.ID)
			return nil
		})
	},
}

var requestDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Withdraw a help request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp("DeleteRequest", func(a *app.GVApp) error {
			if err := a.Service().Requests.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("Deleted request #%d\n", id)
			return nil
		})
	},
}

// verification command
var verificationCmd = &cobra.Command{
	Use:     "verification",
	Aliases: []string{"verify"},
	Short:   "Identity verification",
}

var verificationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your verification submissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("ListVerifications", func(a *app.GVApp) error {
			l, err := a.Service().Verifications.List(cmd.Context(), listQuery(cmd))
			if err != nil {
				return err
			}
			printListing(l, verificationRow, "No verification submissions.")
			return nil
		})
	},
}

var verificationShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a verification submission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp("ShowVerification", func(a *app.GVApp) error {
			v, err := a.Service().Verifications.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if v == nil {
				return notFound("verification", id)
			}
			fmt.Println(verificationRow(*v))
			if v.Notes != "" {
				fmt.Printf("\n%s\n", v.Notes)
			}
			return nil
		})
	},
}

var verificationSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit identity documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		fields := changedFields(cmd, map[string]string{"document-type": "document_type", "notes": "notes"})
		return withApp("SubmitVerification", func(a *app.GVApp) error {
			p, err := a.Payload(fields, map[string]string{"document": file})
			if err != nil {
				return err
			}
			v, err := a.Service().Verifications.Create(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Printf("Submitted verification #%d (%s)\n", v.ID, v.Status)
			return nil
		})
	},
}

// notification command
var notificationCmd = &cobra.Command{
	Use:     "notification",
	Aliases: []string{"notifications"},
	Short:   "Read notifications",
}

var notificationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("ListNotifications", func(a *app.GVApp) error {
			l, err := a.Service().Notifications.List(cmd.Context(), listQuery(cmd))
			if err != nil {
				return err
			}
			printListing(l, notificationRow, "No notifications.")
			return nil
		})
	},
}

var notificationReadCmd = &cobra.Command{
	Use:   "read ID",
	Short: "Mark a notification read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp("MarkNotificationRead", func(a *app.GVApp) error {
			n, err := a.Service().MarkNotificationRead(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Println(notificationRow(n))
			return nil
		})
	},
}

func init() {
	donationListCmd.Flags().Int("page", 1, "Page to show")
	donationListCmd.Flags().String("status", "", "Only show events with this status")
	for _, c := range []*cobra.Command{donationCreateCmd, donationUpdateCmd} {
		c.Flags().String("title", "", "Event title")
		c.Flags().String("description", "", "Event description")
		c.Flags().Int64("goal", 0, "Goal amount")
		c.Flags().Int64("location", 0, "Location id")
		c.Flags().String("image", "", "Image file to upload")
	}
	donationCreateCmd.MarkFlagRequired("title")
	donationCreateCmd.MarkFlagRequired("goal")
	donationCmd.AddCommand(donationListCmd, donationShowCmd, donationCreateCmd, donationUpdateCmd, donationDeleteCmd, donationDonateCmd)

	requestListCmd.Flags().Int("page", 1, "Page to show")
	requestListCmd.Flags().String("status", "", "Only show requests with this status")
	requestCreateCmd.Flags().String("title", "", "Request title")
	requestCreateCmd.Flags().String("description", "", "What the help is for")
	requestCreateCmd.Flags().Int64("amount", 0, "Amount needed")
	requestCreateCmd.Flags().Int64("location", 0, "Location id")
	requestCreateCmd.MarkFlagRequired("title")
	requestCmd.AddCommand(requestListCmd, requestShowCmd, requestCreateCmd, requestDeleteCmd)

	verificationListCmd.Flags().Int("page", 1, "Page to show")
	verificationSubmitCmd.Flags().String("document-type", "", "Kind of document, e.g. passport")
	verificationSubmitCmd.Flags().String("notes", "", "Notes for the reviewer")
	verificationSubmitCmd.Flags().String("file", "", "Document file to upload")
	verificationSubmitCmd.MarkFlagRequired("document-type")
	verificationCmd.AddCommand(verificationListCmd, verificationShowCmd, verificationSubmitCmd)

	notificationListCmd.Flags().Int("page", 1, "Page to show")
	notificationCmd.AddCommand(notificationListCmd, notificationReadCmd)

	rootCmd.AddCommand(donationCmd, requestCmd, verificationCmd, notificationCmd)
}
