package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/enchantedlib/lending-service/app"
	"github.com/enchantedlib/lending-service/config"
	"github.com/enchantedlib/lending-service/internal/model"
	"github.com/enchantedlib/lending-service/internal/preservation"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "lending",
		Short:         "Library lending, fee and preservation management",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(cfg),
		newAddBookCmd(cfg),
		newCheckoutCmd(cfg),
		newReturnCmd(cfg),
		newUndoCmd(cfg),
		newRenewCmd(cfg),
		newOverdueCmd(cfg),
		newRestorationCmd(cfg),
		newRecommendCmd(cfg),
	)
	return root
}

func cmdContext() context.Context {
	return context.Background()
}

func withApp(cfg *config.Config, fn func(a *app.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(a)
	}
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the overdue sweeper until interrupted",
		RunE: func(*cobra.Command, []string) error {
			app.Run(cfg)
			return nil
		},
	}
}

func newAddBookCmd(cfg *config.Config) *cobra.Command {
	var (
		kind       string
		title      string
		author     string
		year       int
		quantity   int
		section    string
		genre      string
		bestseller bool
		value      float64
		rarity     int
		origin     string
		language   string
	)
	cmd := &cobra.Command{
		Use:   "add-book",
		Short: "Add a book to the catalog",
		RunE: withApp(cfg, func(a *app.App) error {
			b := model.NewBookBuilder().
				Kind(model.BookKind(kind)).
				Title(title).
				Author(author).
				YearPublished(year).
				Quantity(quantity)
			switch model.BookKind(kind) {
			case model.KindGeneral:
				b = b.Genre(genre).Bestseller(bestseller)
			case model.KindRare:
				b = b.EstimatedValue(value).RarityLevel(rarity)
			case model.KindAncient:
				b = b.Origin(origin).Language(language)
			}
			book, err := b.Build()
			if err != nil {
				return err
			}
			res, err := a.Library.AddBook(cmdContext(), book, section)
			if err != nil {
				return err
			}
			fmt.Println(res.Message)
			if res.OK {
				fmt.Println("book id:", res.BookID)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&kind, "kind", string(model.KindGeneral), "general|rare|ancient")
	cmd.Flags().StringVar(&title, "title", "", "book title")
	cmd.Flags().StringVar(&author, "author", "", "book author")
	cmd.Flags().IntVar(&year, "year", 0, "year published")
	cmd.Flags().IntVar(&quantity, "quantity", 1, "number of copies")
	cmd.Flags().StringVar(&section, "section", "", "section name")
	cmd.Flags().StringVar(&genre, "genre", "", "genre (general books)")
	cmd.Flags().BoolVar(&bestseller, "bestseller", false, "bestseller (general books)")
	cmd.Flags().Float64Var(&value, "value", 0, "estimated value (rare books)")
	cmd.Flags().IntVar(&rarity, "rarity", 1, "rarity level 1-10 (rare books)")
	cmd.Flags().StringVar(&origin, "origin", "", "origin (ancient scripts)")
	cmd.Flags().StringVar(&language, "language", "", "language (ancient scripts)")
	return cmd
}

func newCheckoutCmd(cfg *config.Config) *cobra.Command {
	var bookID, userID string
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Check a book out to a user",
		RunE: withApp(cfg, func(a *app.App) error {
			res, err := a.Library.Checkout(cmdContext(), bookID, userID)
			if err != nil {
				return err
			}
			fmt.Println(res.Message)
			if res.OK && res.DueDate != nil {
				fmt.Println("due:", res.DueDate.Format(time.RFC3339))
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&bookID, "book", "", "book id")
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	return cmd
}

func newReturnCmd(cfg *config.Config) *cobra.Command {
	var (
		bookID, userID string
		damaged        bool
	)
	cmd := &cobra.Command{
		Use:   "return",
		Short: "Return a borrowed book",
		RunE: withApp(cfg, func(a *app.App) error {
			res, err := a.Library.Return(cmdContext(), bookID, userID, damaged)
			if err != nil {
				return err
			}
			fmt.Println(res.Message)
			return nil
		}),
	}
	cmd.Flags().StringVar(&bookID, "book", "", "book id")
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().BoolVar(&damaged, "damaged", false, "book came back damaged")
	return cmd
}

func newUndoCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Undo the most recent command",
		RunE: withApp(cfg, func(a *app.App) error {
			res, err := a.Library.UndoLast(cmdContext())
			if err != nil {
				return err
			}
			fmt.Println(res.Message)
			return nil
		}),
	}
}

func newRenewCmd(cfg *config.Config) *cobra.Command {
	var recordID string
	cmd := &cobra.Command{
		Use:   "renew",
		Short: "Renew an active loan",
		RunE: withApp(cfg, func(a *app.App) error {
			res, err := a.Library.RenewLoan(cmdContext(), recordID)
			if err != nil {
				return err
			}
			fmt.Println(res.Message)
			if res.OK && res.DueDate != nil {
				fmt.Println("new due:", res.DueDate.Format(time.RFC3339))
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&recordID, "record", "", "lending record id")
	return cmd
}

func newOverdueCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "List overdue loans with accrued late fees",
		RunE: withApp(cfg, func(a *app.App) error {
			overdue, err := a.Library.OverdueBooks(cmdContext())
			if err != nil {
				return err
			}
			for _, o := range overdue {
				fmt.Printf("%s held by %s: %d days overdue, $%.2f\n",
					o.Book.Title, o.User.Name, o.DaysOverdue, o.LateFee)
			}
			if len(overdue) == 0 {
				fmt.Println("no overdue loans")
			}
			return nil
		}),
	}
}

func newRestorationCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restoration",
		Short: "Manage the restoration queue",
	}

	var (
		bookID    string
		priority  int
		notes     string
		condition string
	)

	enqueue := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a book for restoration",
		RunE: withApp(cfg, func(a *app.App) error {
			item, err := a.Library.Preservation().Enqueue(cmdContext(), bookID, priority, notes)
			if err != nil {
				return err
			}
			fmt.Printf("queued %q, estimated completion %s\n",
				item.Title, item.EstimatedCompletion.Format(time.DateOnly))
			return nil
		}),
	}
	enqueue.Flags().StringVar(&bookID, "book", "", "book id")
	enqueue.Flags().IntVar(&priority, "priority", 0, "priority 0-10")
	enqueue.Flags().StringVar(&notes, "notes", "", "notes")

	queue := &cobra.Command{
		Use:   "queue",
		Short: "Show the restoration backlog by priority",
		RunE: withApp(cfg, func(a *app.App) error {
			for _, item := range a.Library.Preservation().Queue(preservation.SortByPriority) {
				fmt.Printf("[%d] %s (%s, %s)\n", item.Priority, item.Title, item.Kind, item.Condition)
			}
			return nil
		}),
	}

	complete := &cobra.Command{
		Use:   "complete",
		Short: "Complete a restoration and return the book to circulation",
		RunE: withApp(cfg, func(a *app.App) error {
			hist, err := a.Library.Preservation().CompleteRestoration(
				cmdContext(), bookID, model.Condition(condition), notes)
			if err != nil {
				return err
			}
			fmt.Printf("restored %q: %s -> %s\n", hist.Title, hist.OriginalCondition, hist.NewCondition)
			return nil
		}),
	}
	complete.Flags().StringVar(&bookID, "book", "", "book id")
	complete.Flags().StringVar(&condition, "condition", "", "condition after restoration")
	complete.Flags().StringVar(&notes, "notes", "", "notes")

	recommend := &cobra.Command{
		Use:   "recommend",
		Short: "List books that should be restored next",
		RunE: withApp(cfg, func(a *app.App) error {
			recs, err := a.Library.Preservation().Recommendations(cmdContext())
			if err != nil {
				return err
			}
			for _, r := range recs {
				fmt.Printf("[%d] %s: %s\n", r.Priority, r.Book.Title, r.Reason)
			}
			return nil
		}),
	}

	cmd.AddCommand(enqueue, queue, complete, recommend)
	return cmd
}

func newRecommendCmd(cfg *config.Config) *cobra.Command {
	var (
		userID string
		topic  string
		max    int
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend books for a user or topic",
		RunE: withApp(cfg, func(a *app.App) error {
			var (
				books []*model.Book
				err   error
			)
			if topic != "" {
				books, err = a.Library.Recommendations().ByTopic(cmdContext(), topic, max)
			} else {
				books, err = a.Library.Recommendations().Recommendations(cmdContext(), userID, max)
			}
			if err != nil {
				return err
			}
			for _, b := range books {
				fmt.Printf("%s by %s (%d)\n", b.Title, b.Author, b.YearPublished)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&topic, "topic", "", "free-text topic")
	cmd.Flags().IntVar(&max, "max", 10, "maximum results")
	return cmd
}
