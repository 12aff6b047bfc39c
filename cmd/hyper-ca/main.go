//go:build ebiten

package main

import (
	"errors"
	"flag"
	"fmt"
	"log"

	"hyper-ca/internal/app"
	"hyper-ca/internal/compute"
	"hyper-ca/internal/core"
	"hyper-ca/internal/engine"

	"github.com/hajimehoshi/ebiten/v2"
)

func main() {
	cfg := app.NewConfig()
	cfg.Bind(flag.CommandLine)
	flag.Parse()

	backend, err := compute.Open(cfg.Backend)
	if err != nil {
		log.Fatal(err)
	}
	defer backend.Close()

	eng, err := engine.New(backend, cfg.Dim, cfg.Extent(), core.DefaultRule(cfg.Dim))
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	game := app.New(eng, cfg)
	if err := game.Reset(cfg.Seed); err != nil {
		log.Fatal(err)
	}

	w, h := game.Layout(0, 0)
	ebiten.SetWindowTitle(fmt.Sprintf("hyper-ca %dD (%s)", cfg.Dim, backend.Name()))
	ebiten.SetTPS(cfg.TPS)
	ebiten.SetWindowSize(w, h)

	if err := ebiten.RunGame(game); err != nil && !errors.Is(err, ebiten.Termination) {
		log.Fatal(err)
	}
}
