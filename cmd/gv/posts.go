package main

import (
	"fmt"
	"strings"

	"gv-go/internal/app"
	"gv-go/internal/gv"

	"github.com/spf13/cobra"
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Show the community feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		more, _ := cmd.Flags().GetBool("more")
		return withApp("LoadFeed", func(a *app.GVApp) error {
			r, err := a.Service().LoadFeed(cmd.Context(), more)
			if err != nil {
				return err
			}
			if r.Source == gv.SourceCache {
				fmt.Println(cacheNotice(r.SavedAt, r.Err))
			}
			posts := a.Service().Feed().Store().All()
			if len(posts) == 0 {
				fmt.Println("No posts yet.")
				return nil
			}
			for _, p := range posts {
				fmt.Println(postRow(p))
			}
			switch {
			case r.Exhausted:
				fmt.Println("\nEnd of feed.")
			case more:
				fmt.Printf("\n%d new post(s). Run 'gv feed --more' for more.\n", r.Added)
			default:
				fmt.Println("\nRun 'gv feed --more' for more.")
			}
			return nil
		})
	},
}

// post command
var postCmd = &cobra.Command{
	Use:     "post",
	Aliases: []string{"posts"},
	Short:   "Community posts",
}

var postShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp("ShowPost", func(a *app.GVApp) error {
			p, err := a.Service().Post(cmd.Context(), id)
			if err != nil {
				return err
			}
			if p == nil {
				return notFound("post", id)
			}
			fmt.Println(postRow(*p))
			fmt.Printf("\n%s\n", p.Content)
			return nil
		})
	},
}

var postCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Write a post",
	RunE: func(cmd *cobra.Command, args []string) error {
		image, _ := cmd.Flags().GetString("image")
		fields := changedFields(cmd, map[string]string{"title": "title", "content": "content"})
		return withApp("CreatePost", func(a *app.GVApp) error {
			p, err := a.Payload(fields, map[string]string{"image": image})
			if err != nil {
				return err
			}
			post, err := a.Service().CreatePost(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Printf("Posted #%d\n", post.ID)
			return nil
		})
	},
}

func printVote(id int64, s gv.VoteState) {
	fmt.Printf("#%d  +%d -%d  your vote: %s\n", id, s.Upvotes, s.Downvotes, s.UserVote)
}

var postVoteCmd = &cobra.Command{
	Use:       "vote ID up|down",
	Short:     "Vote on a post",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		choice, err := gv.ParseVoteChoice(args[1])
		if err != nil || choice == gv.VoteNone {
			return fmt.Errorf("vote must be up or down, got %q", args[1])
		}
		return withApp("Vote", func(a *app.GVApp) error {
			s, err := a.Service().Vote(cmd.Context(), id, choice)
			if err != nil {
				return err
			}
			printVote(id, s)
			return nil
		})
	},
}

var postUnvoteCmd = &cobra.Command{
	Use:   "unvote ID",
	Short: "Withdraw your vote on a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp("Unvote", func(a *app.GVApp) error {
			s, err := a.Service().Vote(cmd.Context(), id, gv.VoteNone)
			if err != nil {
				return err
			}
			printVote(id, s)
			return nil
		})
	},
}

var postCommentsCmd = &cobra.Command{
	Use:   "comments ID",
	Short: "Show comments on a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		page, _ := cmd.Flags().GetInt("page")
		return withApp("ListComments", func(a *app.GVApp) error {
			comments, cursor, err := a.Service().Comments(cmd.Context(), id, page)
			if err != nil {
				return err
			}
			if len(comments) == 0 {
				fmt.Println("No comments.")
				return nil
			}
			for _, c := range comments {
				fmt.Println(commentRow(c))
			}
			if !cursor.Exhausted() {
				fmt.Printf("\nPage %d of %d. Use --page %d for more.\n", cursor.CurrentPage, cursor.LastPage, cursor.CurrentPage+1)
			}
			return nil
		})
	},
}

var postCommentCmd = &cobra.Command{
	Use:   "comment ID TEXT...",
	Short: "Comment on a post",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		content := strings.Join(args[1:], " ")
		return withApp("Comment", func(a *app.GVApp) error {
			c, err := a.Service().Comment(cmd.Context(), id, content)
			if err != nil {
				return err
			}
			fmt.Printf("Commented #%d on post #%d\n", c.ID, id)
			return nil
		})
	},
}

func init() {
	feedCmd.Flags().Bool("more", false, "Load the next page after the last one shown")
	rootCmd.AddCommand(feedCmd)

	postCreateCmd.Flags().String("title", "", "Post title")
	postCreateCmd.Flags().String("content", "", "Post text")
	postCreateCmd.Flags().String("image", "", "Image file to upload")
	postCreateCmd.MarkFlagRequired("content")
	postCommentsCmd.Flags().Int("page", 1, "Page of comments")
	postCmd.AddCommand(postShowCmd, postCreateCmd, postVoteCmd, postUnvoteCmd, postCommentsCmd, postCommentCmd)
	rootCmd.AddCommand(postCmd)
}
