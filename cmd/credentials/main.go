// Command credentials generates participant login credentials from a CSV of
// accepted papers. It writes the organiser credential sheet and the roster
// file the server loads, and can optionally email each participant their
// credentials.
package main

import (
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/openconf/paperdrop/internal/credentials"
	"github.com/openconf/paperdrop/internal/mailer"
	"github.com/openconf/paperdrop/internal/platform/config"
)

var (
	participantsPath = pflag.String("participants", "participants.csv", "input CSV (paperId,name,email,paperTitle)")
	credentialsPath  = pflag.String("credentials", "credentials.csv", "output credential sheet for organisers")
	rosterPath       = pflag.String("roster", "users.json", "output roster file for the server")
	sendEmail        = pflag.Bool("email", false, "email each participant their credentials")
	mailerPath       = pflag.String("mailer", "", "mailer YAML config (required with --email)")
)

func main() {
	pflag.Parse()

	var mailerCfg mailer.Config
	if *sendEmail {
		if *mailerPath == "" {
			config.Exitf("--email requires --mailer")
		}
		cfg, err := mailer.LoadConfig(*mailerPath)
		if err != nil {
			config.Exitf("credentials: %v", err)
		}
		mailerCfg = cfg
	}

	input, err := os.Open(*participantsPath)
	if err != nil {
		config.Exitf("credentials: open participants: %v", err)
	}
	generated, err := credentials.Generate(input, nil)
	input.Close()
	if err != nil {
		config.Exitf("credentials: %v", err)
	}
	log.Printf("generated credentials for %d participants", len(generated))

	if err := writeFile(*credentialsPath, func(f *os.File) error {
		return credentials.WriteCredentialsCSV(f, generated)
	}); err != nil {
		config.Exitf("credentials: %v", err)
	}
	if err := writeFile(*rosterPath, func(f *os.File) error {
		return credentials.WriteRosterJSON(f, generated)
	}); err != nil {
		config.Exitf("credentials: %v", err)
	}
	log.Printf("wrote %s and %s", *credentialsPath, *rosterPath)

	if !*sendEmail {
		return
	}

	// Credential files are complete at this point; a failed delivery only
	// needs a resend, not a regeneration.
	m := mailer.New(mailerCfg)
	failures := 0
	for _, c := range generated {
		if err := m.Send(c); err != nil {
			failures++
			log.Printf("email: %v", err)
			continue
		}
		log.Printf("emailed %s", c.Email)
	}
	if failures > 0 {
		config.Exitf("credentials: %d of %d emails failed", failures, len(generated))
	}
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
