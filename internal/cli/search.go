package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrlokans/catalog/internal/catalog"
	"github.com/mrlokans/catalog/internal/database"
	"github.com/mrlokans/catalog/internal/entities"
	"github.com/mrlokans/catalog/internal/search"
)

const dateLayout = "2006-01-02"

type searchOptions struct {
	author     int64
	category   int64
	user       int64
	minPrice   float64
	maxPrice   float64
	from       string
	to         string
	sort       string
	limit      int
	offset     int
	jsonOutput bool
}

func newSearchCommand(a *app) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search [text...]",
		Short: "Search books by text and filters",
		Long: `Search the catalog. Text is matched against titles and descriptions;
without text, books are listed by title.

Examples:
  catalog search systems
  catalog search --category 3 --max-price 40 --sort newest
  catalog search "distributed systems" --limit 10 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := opts.params(cmd, args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			c, err := catalog.Open(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer c.Close(ctx)

			var userID *int64
			if cmd.Flags().Changed("user") {
				userID = &opts.user
			}

			found, err := c.SearchBooks(ctx, userID, params)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), found)
			}
			return printBooks(cmd.OutOrStdout(), found)
		},
	}

	opts.bind(cmd)
	return cmd
}

func (o *searchOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int64Var(&o.author, "author", 0, "Only books by this author ID")
	f.Int64Var(&o.category, "category", 0, "Only books in this category ID")
	f.Int64Var(&o.user, "user", 0, "User ID recorded in the activity log")
	f.Float64Var(&o.minPrice, "min-price", 0, "Minimum price")
	f.Float64Var(&o.maxPrice, "max-price", 0, "Maximum price")
	f.StringVar(&o.from, "from", "", "Published on or after (YYYY-MM-DD)")
	f.StringVar(&o.to, "to", "", "Published on or before (YYYY-MM-DD)")
	f.StringVar(&o.sort, "sort", "", "Order: relevance, title, published, newest, id")
	f.IntVar(&o.limit, "limit", database.DefaultPageLimit, "Maximum number of books")
	f.IntVar(&o.offset, "offset", 0, "Number of books to skip")
	f.BoolVar(&o.jsonOutput, "json", false, "Output in JSON format")
}

// params turns the flags that were actually set into search parameters.
func (o *searchOptions) params(cmd *cobra.Command, args []string) (search.Params, error) {
	p := search.Params{
		Query: strings.Join(args, " "),
		Sort:  search.Sort(o.sort),
		Page:  database.Page{Limit: o.limit, Offset: o.offset},
	}

	changed := cmd.Flags().Changed
	if changed("author") {
		p.AuthorID = &o.author
	}
	if changed("category") {
		p.CategoryID = &o.category
	}
	if changed("min-price") {
		p.MinPrice = &o.minPrice
	}
	if changed("max-price") {
		p.MaxPrice = &o.maxPrice
	}
	if o.from != "" {
		t, err := time.Parse(dateLayout, o.from)
		if err != nil {
			return p, fmt.Errorf("invalid --from %q: %w", o.from, err)
		}
		p.PublishedFrom = &t
	}
	if o.to != "" {
		t, err := time.Parse(dateLayout, o.to)
		if err != nil {
			return p, fmt.Errorf("invalid --to %q: %w", o.to, err)
		}
		p.PublishedTo = &t
	}
	return p, nil
}

func printBooks(w io.Writer, found []entities.Book) error {
	if len(found) == 0 {
		_, err := fmt.Fprintln(w, "No books found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tPRICE\tPUBLISHED\tCATEGORIES")
	for _, b := range found {
		names := make([]string, 0, len(b.Categories))
		for _, c := range b.Categories {
			names = append(names, c.Name)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%s\t%s\n",
			b.ID, b.Title, b.AuthorName, b.Price, b.PublishedDate.Format(dateLayout), strings.Join(names, ", "))
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
