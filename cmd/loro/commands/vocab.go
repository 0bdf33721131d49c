package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/loroworks/loro/go/pkg/cli"
	"github.com/loroworks/loro/go/pkg/kv"
	"github.com/loroworks/loro/go/pkg/vocab"
)

var flagVocabText bool

// vocabCmd represents the vocab command group
var vocabCmd = &cobra.Command{
	Use:   "vocab",
	Short: "Manage the vocabulary book",
	Long: `Manage the vocabulary book.

The book tracks which practice words the companion has used in spoken
replies. It is stored under ~/.loro/data.`,
}

var vocabAddCmd = &cobra.Command{
	Use:   "add WORD...",
	Short: "Add practice words to the book",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		book, done, err := openBook(ctx)
		if err != nil {
			return err
		}
		defer done()

		for _, word := range args {
			if _, ok := book.Get(word); ok {
				fmt.Printf("'%s' is already in the book\n", word)
				continue
			}
			rec, err := book.Add(ctx, word)
			if err != nil {
				return err
			}
			cli.PrintSuccess("added '%s'", rec.Word)
		}
		return nil
	},
}

var vocabListCmd = &cobra.Command{
	Use:   "list [PREFIX]",
	Short: "List book words, optionally filtered by prefix",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		book, done, err := openBook(ctx)
		if err != nil {
			return err
		}
		defer done()

		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}
		records := book.List(prefix)

		if outputJSON {
			return outputResult(records, "", true)
		}

		if len(records) == 0 {
			fmt.Println("No words in the book.")
			fmt.Println("\nAdd some with:")
			fmt.Println("  loro vocab add hello rainbow umbrella")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WORD\tHEARD\tLAST_HEARD\tADDED")
		for _, rec := range records {
			last := "never"
			if !rec.LastHeardAt.IsZero() {
				last = rec.LastHeardAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", rec.Word, rec.HeardCount, last, rec.AddedAt.Format("2006-01-02"))
		}
		w.Flush()

		return nil
	},
}

var vocabTouchCmd = &cobra.Command{
	Use:   "touch WORD...",
	Short: "Record that words were just spoken",
	Long: `Record that words were just spoken, bumping their heard counts.

With --text the arguments are treated as a reply transcript and every
book word found in it is touched:

  loro vocab touch --text "What a big rainbow over the bridge!"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		book, done, err := openBook(ctx)
		if err != nil {
			return err
		}
		defer done()

		if flagVocabText {
			records, err := book.TouchText(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No book words found in the text.")
				return nil
			}
			for _, rec := range records {
				cli.PrintSuccess("heard '%s' (%d times)", rec.Word, rec.HeardCount)
			}
			return nil
		}

		for _, word := range args {
			rec, err := book.Touch(ctx, word)
			if err != nil {
				return fmt.Errorf("touch '%s': %w", word, err)
			}
			cli.PrintSuccess("heard '%s' (%d times)", rec.Word, rec.HeardCount)
		}
		return nil
	},
}

var vocabRmCmd = &cobra.Command{
	Use:     "rm WORD...",
	Aliases: []string{"remove"},
	Short:   "Remove words from the book",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		book, done, err := openBook(ctx)
		if err != nil {
			return err
		}
		defer done()

		for _, word := range args {
			if err := book.Remove(ctx, word); err != nil {
				return fmt.Errorf("remove '%s': %w", word, err)
			}
			cli.PrintSuccess("removed '%s'", word)
		}
		return nil
	},
}

func init() {
	vocabTouchCmd.Flags().BoolVar(&flagVocabText, "text", false, "treat arguments as a transcript and touch every book word in it")

	vocabCmd.AddCommand(vocabAddCmd)
	vocabCmd.AddCommand(vocabListCmd)
	vocabCmd.AddCommand(vocabTouchCmd)
	vocabCmd.AddCommand(vocabRmCmd)
}

// openBook opens the vocabulary book in the user's data directory. The
// returned func releases the underlying store.
func openBook(ctx context.Context) (*vocab.Book, func(), error) {
	paths, err := cli.NewPaths()
	if err != nil {
		return nil, nil, err
	}
	if err := paths.EnsureDataDir(); err != nil {
		return nil, nil, err
	}
	store, err := kv.NewBadgerWithOptions(kv.BadgerOptions{
		Dir:    paths.DataDir(),
		Logger: slog.Default(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open vocabulary store: %w", err)
	}
	book, err := vocab.Open(ctx, store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return book, func() { store.Close() }, nil
}
