// seed carga bodegas e items en las tablas de catálogo que referencian las posiciones y el log.
//
// Uso: go run ./cmd/seed [-latin1] catalogo.csv
// Formato: kind,id,name con kind = warehouse | item.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

func main() {
	latin1 := flag.Bool("latin1", false, "decodificar el CSV desde ISO-8859-1")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "uso: seed [-latin1] catalogo.csv")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cargar configuración: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "stock-ledger-seed"})

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatal().Err(err).Msg("abrir CSV")
	}
	defer f.Close()

	rows, err := readCatalog(f, *latin1)
	if err != nil {
		log.Fatal().Err(err).Msg("leer CSV")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migraciones")
	}

	catalog := postgres.NewCatalogRepository(pool)
	var warehouses, items int
	for _, row := range rows {
		switch row.Kind {
		case kindWarehouse:
			err = catalog.UpsertWarehouse(ctx, row.ID, row.Name)
			warehouses++
		case kindItem:
			err = catalog.UpsertItem(ctx, row.ID, row.Name)
			items++
		}
		if err != nil {
			log.Fatal().Err(err).Str("kind", row.Kind).Str("id", row.ID).Msg("registrar fila")
		}
	}
	log.Info().Int("warehouses", warehouses).Int("items", items).Msg("catálogo cargado")
}
