// seed_catalog.go loads a YAML material catalog and writes it to Postgres.
//
// Usage:
//
//	go run scripts/seed_catalog.go -catalog internal/catalog/catalog.yaml -db postgres://localhost/pipeselect
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/MikeSquared-Agency/PipeSelect/internal/catalog"
)

func main() {
	catalogPath := flag.String("catalog", "", "path to catalog YAML (built-in catalog when empty)")
	dbURL := flag.String("db", os.Getenv("PIPESELECT_DATABASE_URL"), "Postgres connection URL")
	dryRun := flag.Bool("dry-run", false, "print the catalog without writing")
	flag.Parse()

	src, err := catalog.Load(*catalogPath)
	if err != nil {
		log.Fatalf("load catalog: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	materials, criteria, err := readCatalog(ctx, src)
	if err != nil {
		log.Fatal(err)
	}

	if *dryRun {
		for _, c := range criteria {
			kind := "cost"
			if c.IsBenefit {
				kind = "benefit"
			}
			fmt.Printf("criterion %-24s %-8s %s\n", c.Key, kind, c.Label)
		}
		for _, m := range materials {
			fmt.Printf("material  %-24s %v %v\n", m.Name, m.NetworkTypes, m.PressureRatings)
		}
		return
	}

	if *dbURL == "" {
		log.Fatal("no database URL: pass -db or set PIPESELECT_DATABASE_URL")
	}
	pg, err := catalog.NewPostgresProvider(ctx, *dbURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pg.Close()

	if err := pg.Seed(ctx, materials, criteria); err != nil {
		log.Fatalf("seed: %v", err)
	}
	fmt.Printf("seeded %d criteria, %d materials\n", len(criteria), len(materials))
}

func readCatalog(ctx context.Context, src catalog.Provider) ([]catalog.Material, []catalog.Criterion, error) {
	materials, err := src.Materials(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read materials: %w", err)
	}
	criteria, err := src.Criteria(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read criteria: %w", err)
	}
	return materials, criteria, nil
}
