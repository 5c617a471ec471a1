package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/SocialAgent/internal/content"
	"github.com/TobiSchelling/SocialAgent/internal/database"
	"github.com/TobiSchelling/SocialAgent/internal/pipeline"
	"github.com/TobiSchelling/SocialAgent/internal/publish"
	"github.com/TobiSchelling/SocialAgent/internal/service"
)

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", what, arg)
	}
	return id, nil
}

func hashtags(tags []string) string {
	return strings.Join(tags, " ")
}

// --- trends command ---

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Refresh and inspect trending topics",
}

var trendsRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch trends from configured sources and store them",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println("Refreshing trends...")
		res, err := a.svc.RefreshTrends(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("\nStored %d trends.\n", res.Count)
		printTrends(res.Trends)
		return nil
	},
}

var trendsLimit int

var trendsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored trends by score",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		records, err := db.ListTrends(trendsLimit, 0)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No trends stored. Fetch some with: socialagent trends refresh")
			return nil
		}
		printTrends(records)
		return nil
	},
}

func printTrends(records []content.TrendRecord) {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			string(r.Source),
			r.Topic,
			fmt.Sprintf("%.2f", r.Score),
			truncate(r.Text, 60),
		})
	}
	printTable(os.Stdout, isTerminal(os.Stdout), []string{"ID", "Source", "Topic", "Score", "Text"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft})
}

func init() {
	trendsListCmd.Flags().IntVarP(&trendsLimit, "limit", "n", 20, "Maximum number of trends to show")
	trendsCmd.AddCommand(trendsRefreshCmd)
	trendsCmd.AddCommand(trendsListCmd)
}

// --- generate command ---

var (
	dryRun     bool
	persona    string
	brandRules string
	platforms  []string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the pipeline: fetch -> rank -> generate -> adapt -> compliance -> schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		req := pipeline.Request{Persona: persona, BrandRules: brandRules}
		names := platforms
		if len(names) == 0 {
			names = cfg.Pipeline.Platforms
		}
		for _, p := range names {
			req.Platforms = append(req.Platforms, content.ParsePlatform(p))
		}

		ctx := cmd.Context()
		var result *pipeline.Result
		if dryRun {
			if req.Persona == "" || req.BrandRules == "" {
				brand, err := a.svc.Brand()
				if err != nil {
					return err
				}
				req.Persona, req.BrandRules = brand.Persona, brand.BrandRules
			}
			result, err = a.pipeline.DryRun(ctx, req)
			if err != nil {
				return err
			}
		} else {
			res, err := a.svc.GenerateIdeas(ctx, req)
			if err != nil {
				return err
			}
			result = res.Result
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
			fmt.Printf("  %s\n", step.Summary)
		}
		if dryRun {
			return nil
		}

		fmt.Println()
		printIdeas(result.Ideas)
		fmt.Println("\nPipeline complete! Approve ideas with 'socialagent ideas approve <id>'.")
		return nil
	},
}

func printIdeas(list []content.Idea) {
	rows := make([][]string, 0, len(list))
	for _, idea := range list {
		rows = append(rows, []string{
			strconv.FormatInt(idea.ID, 10),
			string(idea.Status),
			truncate(idea.Title, 50),
			hashtags(idea.Hashtags),
		})
	}
	printTable(os.Stdout, isTerminal(os.Stdout), []string{"ID", "Status", "Title", "Hashtags"}, rows,
		[]columnAlignment{alignRight})
}

func init() {
	generateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
	generateCmd.Flags().StringVar(&persona, "persona", "", "Creator persona (defaults to the brand profile)")
	generateCmd.Flags().StringVar(&brandRules, "brand-rules", "", "Brand rules (defaults to the brand profile)")
	generateCmd.Flags().StringSliceVarP(&platforms, "platform", "p", nil, "Target platforms (x, instagram, linkedin)")
}

// --- ideas command ---

var ideasCmd = &cobra.Command{
	Use:   "ideas",
	Short: "Review generated ideas",
}

var (
	ideasStatus string
	ideasLimit  int
)

var ideasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored ideas, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stored, err := db.ListIdeas(content.IdeaStatus(ideasStatus), ideasLimit, 0)
		if err != nil {
			return err
		}
		if len(stored) == 0 {
			fmt.Println("No ideas found. Create some with: socialagent generate")
			return nil
		}
		list := make([]content.Idea, len(stored))
		for i, s := range stored {
			list[i] = s.Idea
		}
		printIdeas(list)
		return nil
	},
}

var ideasApproveCmd = &cobra.Command{
	Use:   "approve [id]",
	Short: "Approve an idea for scheduling",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "idea")
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		idea, err := service.New(db, service.Options{}).ApproveIdea(id)
		if err != nil {
			return err
		}
		fmt.Printf("Approved idea [%d]: %s\n", idea.ID, idea.Title)
		return nil
	},
}

func init() {
	ideasListCmd.Flags().StringVar(&ideasStatus, "status", "", "Filter by status (draft, approved, scheduled)")
	ideasListCmd.Flags().IntVarP(&ideasLimit, "limit", "n", 20, "Maximum number of ideas to show")
	ideasCmd.AddCommand(ideasListCmd)
	ideasCmd.AddCommand(ideasApproveCmd)
}

// --- schedule command ---

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Plan posts for approved ideas",
}

var scheduleStatus string

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedule entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := db.ListSchedule(database.ScheduleStatus(scheduleStatus))
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Nothing scheduled. Add a post with: socialagent schedule add <idea-id> <platform>")
			return nil
		}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			when := e.ScheduledFor
			if when == "" {
				when = "suggested " + e.Slot
			} else {
				when += " UTC"
			}
			note := ""
			if e.Error != nil {
				note = truncate(*e.Error, 40)
			}
			rows = append(rows, []string{
				strconv.FormatInt(e.ID, 10),
				strconv.FormatInt(e.IdeaID, 10),
				string(e.Platform),
				when,
				string(e.Status),
				note,
			})
		}
		printTable(os.Stdout, isTerminal(os.Stdout), []string{"ID", "Idea", "Platform", "When", "Status", "Error"}, rows,
			[]columnAlignment{alignRight, alignRight})
		return nil
	},
}

var (
	scheduleSlot     string
	scheduleAt       string
	scheduleTimezone string
)

var scheduleAddCmd = &cobra.Command{
	Use:   "add [idea-id] [platform]",
	Short: "Schedule an approved idea on a platform",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "idea")
		if err != nil {
			return err
		}
		req := service.ScheduleRequest{
			IdeaID:   id,
			Platform: content.ParsePlatform(args[1]),
			Slot:     scheduleSlot,
			Timezone: scheduleTimezone,
		}
		if scheduleAt != "" {
			if req.At, err = time.Parse(time.RFC3339, scheduleAt); err != nil {
				return fmt.Errorf("invalid --at time (want RFC 3339): %w", err)
			}
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		entry, err := a.svc.ScheduleIdea(req)
		if errors.Is(err, service.ErrNotApproved) {
			return fmt.Errorf("idea %d must be approved first: socialagent ideas approve %d", id, id)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Scheduled idea [%d] on %s for %s UTC (slot %s, %s)\n",
			entry.IdeaID, entry.Platform.DisplayName(), entry.ScheduledFor, entry.Slot, entry.Timezone)
		return nil
	},
}

func init() {
	scheduleListCmd.Flags().StringVar(&scheduleStatus, "status", "", "Filter by status (suggested, scheduled, published, failed)")
	scheduleAddCmd.Flags().StringVar(&scheduleSlot, "slot", "", "Time slot HH:MM (defaults to the suggested slot)")
	scheduleAddCmd.Flags().StringVar(&scheduleAt, "at", "", "Exact publish time in RFC 3339")
	scheduleAddCmd.Flags().StringVar(&scheduleTimezone, "timezone", "", "IANA timezone for --slot (defaults to config)")
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleAddCmd)
}

// --- publish command ---

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish every due scheduled post",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.svc.RunPublisher(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Due: %d, published: %d, failed: %d\n", res.Due, res.Published, res.Failed)
		for _, p := range res.Posts {
			fmt.Printf("  %s: %s\n", p.Platform.DisplayName(), p.Permalink)
		}
		for _, e := range res.Errors {
			fmt.Printf("  Error: %s\n", e)
		}
		return nil
	},
}

// --- analytics command ---

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Track engagement of published posts",
}

var analyticsRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Pull the latest metrics for every published post",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.svc.RefreshAnalytics(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Posts: %d, snapshots: %d, failed: %d\n", res.Posts, res.Snapshots, res.Failed)
		for _, p := range content.DefaultPlatforms() {
			m, ok := res.ByPlatform[p]
			if !ok {
				continue
			}
			fmt.Printf("  %s: %d impressions, %d likes, %.1f%% engagement\n",
				p.DisplayName(), m.Impressions, m.Likes, m.EngagementRate*100)
		}
		for _, e := range res.Errors {
			fmt.Printf("  Error: %s\n", e)
		}
		return nil
	},
}

var analyticsLimit int

var analyticsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List published posts with their latest metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		posts, err := db.ListPosts(analyticsLimit)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			fmt.Println("No published posts yet. Publish due posts with: socialagent publish")
			return nil
		}
		rows := make([][]string, 0, len(posts))
		for _, p := range posts {
			rows = append(rows, postRow(p))
		}
		printTable(os.Stdout, isTerminal(os.Stdout),
			[]string{"ID", "Platform", "Posted", "Impressions", "Likes", "Comments", "Shares", "Engagement", "Updated"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft})
		return nil
	},
}

// postRow renders a post for the analytics table. Posts without a snapshot
// show dashes.
func postRow(p database.Post) []string {
	row := []string{strconv.FormatInt(p.ID, 10), p.Platform.DisplayName(), p.PostedAt}
	var m publish.PostMetrics
	if len(p.Metrics) == 0 || json.Unmarshal(p.Metrics, &m) != nil {
		return append(row, "-", "-", "-", "-", "-", "-")
	}
	return append(row,
		strconv.Itoa(m.Impressions),
		strconv.Itoa(m.Likes),
		strconv.Itoa(m.Comments),
		strconv.Itoa(m.Shares),
		fmt.Sprintf("%.1f%%", m.EngagementRate*100),
		p.MetricsAt,
	)
}

func init() {
	analyticsListCmd.Flags().IntVarP(&analyticsLimit, "limit", "n", 20, "Maximum number of posts to show")
	analyticsCmd.AddCommand(analyticsRefreshCmd)
	analyticsCmd.AddCommand(analyticsListCmd)
}

// --- accounts command ---

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage connected platform accounts",
}

func withAuth(fn func(a *app) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if a.auth == nil {
		return fmt.Errorf("accounts are disabled: set %s and %s", cfg.OAuth.StateSecretEnv, cfg.OAuth.EncryptionSecretEnv)
	}
	return fn(a)
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List connected accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAuth(func(a *app) error {
			accounts, err := a.auth.Accounts(cfg.OAuth.UserID)
			if err != nil {
				return err
			}
			if len(accounts) == 0 {
				fmt.Println("No accounts connected. Start 'socialagent serve' and open /auth/<platform>/login?redirect=1")
				return nil
			}
			rows := make([][]string, 0, len(accounts))
			for _, acc := range accounts {
				rows = append(rows, []string{strconv.FormatInt(acc.ID, 10), acc.Platform.DisplayName(), acc.Scopes, acc.CreatedAt})
			}
			printTable(os.Stdout, isTerminal(os.Stdout), []string{"ID", "Platform", "Scopes", "Connected"}, rows,
				[]columnAlignment{alignRight})
			return nil
		})
	},
}

var accountsRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Disconnect an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "account")
		if err != nil {
			return err
		}
		return withAuth(func(a *app) error {
			acc, err := a.auth.Disconnect(cfg.OAuth.UserID, id)
			if errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("account %d not found", id)
			}
			if err != nil {
				return err
			}
			fmt.Printf("%s account disconnected successfully\n", acc.Platform.DisplayName())
			return nil
		})
	},
}

func init() {
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsRemoveCmd)
}
