package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/aluiziolira/go-books-catalog/models"
	"github.com/aluiziolira/go-books-catalog/pipeline"
	"github.com/spf13/cobra"
)

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <csv>",
		Short: "Summarise a CSV written by a previous run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := pipeline.ReadCSV(args[0])
			if err != nil {
				return err
			}
			return writeInspection(cmd.OutOrStdout(), records)
		},
	}
}

type categoryStats struct {
	name          string
	books         int
	missingImages int
	priceSum      float64
}

func writeInspection(out io.Writer, records []*models.BookRecord) error {
	byName := make(map[string]*categoryStats)
	for _, rec := range records {
		stats, ok := byName[rec.Category]
		if !ok {
			stats = &categoryStats{name: rec.Category}
			byName[rec.Category] = stats
		}
		stats.books++
		if price, err := strconv.ParseFloat(rec.Price, 64); err == nil {
			stats.priceSum += price
		}
		if rec.ImagePath == "" {
			stats.missingImages++
		} else if info, err := os.Stat(rec.ImagePath); err != nil || info.Size() == 0 {
			stats.missingImages++
		}
	}

	categories := make([]*categoryStats, 0, len(byName))
	for _, stats := range byName {
		categories = append(categories, stats)
	}
	sort.Slice(categories, func(i, j int) bool {
		return categories[i].name < categories[j].name
	})

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tBOOKS\tAVG PRICE\tMISSING IMAGES")
	for _, stats := range categories {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%d\n", stats.name, stats.books, stats.priceSum/float64(stats.books), stats.missingImages)
	}
	fmt.Fprintf(tw, "TOTAL\t%d\t\t\n", len(records))
	return tw.Flush()
}
