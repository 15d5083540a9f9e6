// daokit-explain compiles a YAML file of query templates and prints the SQL
// each one renders to. It exits non-zero on the first template that does not
// compile, so it can guard a build.
//
// Usage:
//
//	daokit-explain [--dialect postgres|mysql|sqlite] queries.yaml
//
// Input:
//
//	driver: postgres
//	queries:
//	  - owner: Users
//	    name: FindByEmail
//	    template: SELECT * FROM :schema.users WHERE email IN (:emails)
//	    params:
//	      - {name: schema, role: schema}
//	      - {name: emails, type: "[]string"}
//	      - {name: page, role: paging}
//	    paging: {default_sort: id, default_limit: 20, max_limit: 100}
package main

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Konsultn-Engineering/daokit/dialect"
)

func main() {
	dialectName := flag.String("dialect", "", "placeholder dialect override (postgres, mysql, sqlite)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if flag.NArg() != 1 {
		log.Fatal().Msg("usage: daokit-explain [--dialect name] queries.yaml")
	}
	path := flag.Arg(0)

	f, err := LoadFile(path)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("load failed")
	}

	name := f.Driver
	if *dialectName != "" {
		name = *dialectName
	}
	d := dialect.Standard
	if name != "" {
		if d, err = dialect.ByName(name); err != nil {
			log.Fatal().Err(err).Msg("unknown dialect")
		}
	}
	log.Debug().Str("dialect", d.Name()).Int("queries", len(f.Queries)).Msg("compiling")

	if err := Explain(os.Stdout, f, d); err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("template does not compile")
	}
}
