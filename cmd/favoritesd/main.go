// Copyright 2018 The go-ethereum Authors
// This file is part of go-ethereum.
//
// go-ethereum is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ethereum is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ethereum. If not, see <http://www.gnu.org/licenses/>.

// favoritesd serves the favorite-LLM frame backend.
//
// It records favorites, reconciles wallet mint transactions of the collection
// with their rows and serves token metadata.  Reconciliation is exposed over
// REST for the frame client and as the "mint" JSON-RPC namespace at /rpc.
//
// Usage:
//   favoritesd --rpc <endpoint> --db <postgres dsn> [--listen :8080]
//   favoritesd --dev --rpc <endpoint>
//   favoritesd recheck <txhash>
//   favoritesd info
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/cmd/utils"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/jc4p/llm-rater-frame/config"
	"github.com/jc4p/llm-rater-frame/contracts/favorite"
	"github.com/jc4p/llm-rater-frame/mint"
	"github.com/jc4p/llm-rater-frame/server"
	"github.com/jc4p/llm-rater-frame/store/memorydb"
	"github.com/jc4p/llm-rater-frame/store/pgstore"
	cli "gopkg.in/urfave/cli.v1"
)

// shutdownTimeout leaves room for reconciliations already polling.
const shutdownTimeout = 30 * time.Second

var (
	app = cli.NewApp()

	// Flags.  Every flag overrides the FAVORITES_* variable of the same
	// setting.
	rpcFlag = cli.StringFlag{
		Name:  "rpc",
		Usage: "Base JSON-RPC endpoint (e.g. https://mainnet.base.org)",
	}
	contractFlag = cli.StringFlag{
		Name:  "contract",
		Usage: "Favorite-LLM collection contract address",
	}
	chainIDFlag = cli.Uint64Flag{
		Name:  "chainid",
		Usage: "Chain id the endpoint must report",
	}
	rpcTimeoutFlag = cli.DurationFlag{
		Name:  "rpc.timeout",
		Usage: "Timeout of a single JSON-RPC round trip",
	}
	dbFlag = cli.StringFlag{
		Name:  "db",
		Usage: "PostgreSQL connection string",
	}
	devFlag = cli.BoolFlag{
		Name:  "dev",
		Usage: "Keep records in memory instead of PostgreSQL",
	}
	listenFlag = cli.StringFlag{
		Name:  "listen",
		Usage: "HTTP listen address",
	}
	corsFlag = cli.StringFlag{
		Name:  "cors",
		Usage: "Allowed CORS origin",
	}
	pollAttemptsFlag = cli.IntFlag{
		Name:  "poll.attempts",
		Usage: "Receipt lookups per reconciliation",
	}
	pollIntervalFlag = cli.DurationFlag{
		Name:  "poll.interval",
		Usage: "Wait before the second receipt lookup",
	}
	pollMultiplierFlag = cli.Float64Flag{
		Name:  "poll.multiplier",
		Usage: "Growth factor of the wait between receipt lookups",
	}
	pollMaxFlag = cli.DurationFlag{
		Name:  "poll.max",
		Usage: "Upper bound of the wait between receipt lookups",
	}
	heuristicFlag = cli.BoolTFlag{
		Name:  "heuristic",
		Usage: "Guess token ids from totalSupply when a receipt has no mint event",
	}
	windowFlag = cli.Uint64Flag{
		Name:  "heuristic.window",
		Usage: "Blocks behind head within which the totalSupply guess applies",
	}
	legacyRowFlag = cli.Int64Flag{
		Name:  "legacy.token0-row",
		Usage: "Row whose data is served as metadata of token 0",
	}
	externalURLFlag = cli.StringFlag{
		Name:  "external-url",
		Usage: "Base URL of the frame used in token metadata",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
	}
	logJSONFlag = cli.BoolFlag{
		Name:  "log.json",
		Usage: "Format logs as JSON lines",
	}

	chainFlags = []cli.Flag{rpcFlag, contractFlag, chainIDFlag, rpcTimeoutFlag}
	pollFlags  = []cli.Flag{pollAttemptsFlag, pollIntervalFlag, pollMultiplierFlag, pollMaxFlag, heuristicFlag, windowFlag}
	storeFlags = []cli.Flag{dbFlag, devFlag}
	logFlags   = []cli.Flag{verbosityFlag, logJSONFlag}
)

func init() {
	app.Name = "favoritesd"
	app.Usage = "Favorite-LLM frame backend and mint reconciler"
	app.Version = "0.2.0"
	app.Action = run
	app.Flags = flags(chainFlags, pollFlags, storeFlags, logFlags,
		[]cli.Flag{listenFlag, corsFlag, legacyRowFlag, externalURLFlag})
	app.Commands = []cli.Command{
		{
			Name:      "recheck",
			Usage:     "Re-check a mint transaction and reconcile the row carrying it",
			ArgsUsage: "<txhash>",
			Action:    recheckCmd,
			Flags:     flags(chainFlags, pollFlags, storeFlags, logFlags),
		},
		{
			Name:   "info",
			Usage:  "Print collection and chain information",
			Action: infoCmd,
			Flags:  flags(chainFlags, logFlags),
		},
	}
}

func flags(groups ...[]cli.Flag) []cli.Flag {
	var all []cli.Flag
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies the flags that were set.
func loadConfig(ctx *cli.Context) config.Config {
	cfg, err := config.Load()
	if err != nil {
		utils.Fatalf("Failed to load configuration: %v", err)
	}
	if ctx.IsSet(rpcFlag.Name) {
		cfg.RPCURL = ctx.String(rpcFlag.Name)
	}
	if ctx.IsSet(contractFlag.Name) {
		cfg.Contract = ctx.String(contractFlag.Name)
	}
	if ctx.IsSet(chainIDFlag.Name) {
		cfg.ChainID = ctx.Uint64(chainIDFlag.Name)
	}
	if ctx.IsSet(rpcTimeoutFlag.Name) {
		cfg.RPCTimeout = ctx.Duration(rpcTimeoutFlag.Name)
	}
	if ctx.IsSet(dbFlag.Name) {
		cfg.DatabaseURL = ctx.String(dbFlag.Name)
	}
	if ctx.IsSet(devFlag.Name) {
		cfg.Dev = ctx.Bool(devFlag.Name)
	}
	if ctx.IsSet(listenFlag.Name) {
		cfg.Listen = ctx.String(listenFlag.Name)
	}
	if ctx.IsSet(corsFlag.Name) {
		cfg.CORSOrigin = ctx.String(corsFlag.Name)
	}
	if ctx.IsSet(pollAttemptsFlag.Name) {
		cfg.PollAttempts = ctx.Int(pollAttemptsFlag.Name)
	}
	if ctx.IsSet(pollIntervalFlag.Name) {
		cfg.PollInterval = ctx.Duration(pollIntervalFlag.Name)
	}
	if ctx.IsSet(pollMultiplierFlag.Name) {
		cfg.PollMultiplier = ctx.Float64(pollMultiplierFlag.Name)
	}
	if ctx.IsSet(pollMaxFlag.Name) {
		cfg.PollMaxInterval = ctx.Duration(pollMaxFlag.Name)
	}
	if ctx.IsSet(heuristicFlag.Name) {
		cfg.Heuristic = ctx.BoolT(heuristicFlag.Name)
	}
	if ctx.IsSet(windowFlag.Name) {
		cfg.RecencyWindow = ctx.Uint64(windowFlag.Name)
	}
	if ctx.IsSet(legacyRowFlag.Name) {
		cfg.LegacyToken0Row = ctx.Int64(legacyRowFlag.Name)
	}
	if ctx.IsSet(externalURLFlag.Name) {
		cfg.ExternalURL = ctx.String(externalURLFlag.Name)
	}
	if ctx.IsSet(verbosityFlag.Name) {
		cfg.Verbosity = ctx.Int(verbosityFlag.Name)
	}
	if ctx.IsSet(logJSONFlag.Name) {
		cfg.LogJSON = ctx.Bool(logJSONFlag.Name)
	}
	if err := cfg.Validate(); err != nil {
		utils.Fatalf("%v", err)
	}
	setupLogging(cfg)
	return cfg
}

func setupLogging(cfg config.Config) {
	level := log.FromLegacyLevel(cfg.Verbosity)
	if cfg.LogJSON {
		log.SetDefault(log.NewLogger(log.JSONHandlerWithLevel(os.Stderr, level)))
		return
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, level, true)))
}

// dialChain connects to the endpoint and checks it serves the expected chain.
func dialChain(ctx context.Context, cfg config.Config) (*mint.EthereumGateway, *favorite.FavoriteNFT) {
	gateway, err := mint.DialGateway(ctx, cfg.RPCURL, cfg.RPCTimeout)
	if err != nil {
		utils.Fatalf("Failed to connect to %s: %v", cfg.RPCURL, err)
	}
	chainID, err := gateway.ChainID(ctx)
	if err != nil {
		utils.Fatalf("Failed to query chain id: %v", err)
	}
	if chainID.Uint64() != cfg.ChainID {
		utils.Fatalf("Endpoint serves chain %v, want %d", chainID, cfg.ChainID)
	}
	nft, err := favorite.NewFavoriteNFT(cfg.ContractAddress())
	if err != nil {
		utils.Fatalf("Failed to bind collection contract: %v", err)
	}
	return gateway, nft
}

// openStore returns the record store and its release function.
func openStore(ctx context.Context, cfg config.Config) (mint.RecordStore, func()) {
	if cfg.Dev {
		log.Warn("Development mode, records are kept in memory only")
		return memorydb.New(), func() {}
	}
	store, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		utils.Fatalf("Failed to open record store: %v", err)
	}
	return store, store.Close
}

func newReconciler(cfg config.Config, store mint.RecordStore, gateway mint.Gateway, nft *favorite.FavoriteNFT) *mint.Reconciler {
	poller := mint.NewPoller(gateway, cfg.PollAttempts,
		mint.ExponentialBackOff(cfg.PollInterval, cfg.PollMultiplier, cfg.PollMaxInterval))
	interp := mint.NewInterpreter(nft, gateway, mint.InterpreterConfig{
		Heuristic:     cfg.Heuristic,
		RecencyWindow: cfg.RecencyWindow,
	})
	return mint.NewReconciler(store, poller, interp)
}

func run(ctx *cli.Context) error {
	cfg := loadConfig(ctx)

	sigctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateway, nft := dialChain(sigctx, cfg)
	defer gateway.Close()
	store, closeStore := openStore(sigctx, cfg)
	defer closeStore()

	reconciler := newReconciler(cfg, store, gateway, nft)
	srv, err := server.New(store, reconciler, mint.NewCatalog(store, cfg.ExternalURL, cfg.LegacyToken0Row), cfg.CORSOrigin)
	if err != nil {
		return err
	}
	defer srv.Stop()

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- httpSrv.ListenAndServe() }()

	log.Info("Favorites service ready",
		"listen", cfg.Listen,
		"rpc", cfg.RPCURL,
		"contract", nft.Address(),
		"chainid", cfg.ChainID,
		"heuristic", cfg.Heuristic,
		"dev", cfg.Dev,
	)

	select {
	case err := <-errc:
		return err
	case <-sigctx.Done():
	}
	log.Info("Shutting down")
	shutctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func recheckCmd(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		utils.Fatalf("Usage: favoritesd recheck <txhash>")
	}
	cfg := loadConfig(ctx)

	sigctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateway, nft := dialChain(sigctx, cfg)
	defer gateway.Close()
	store, closeStore := openStore(sigctx, cfg)
	defer closeStore()

	res, err := newReconciler(cfg, store, gateway, nft).Recheck(sigctx, ctx.Args().First())
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func infoCmd(ctx *cli.Context) error {
	cfg := loadConfig(ctx)
	bg := context.Background()

	gateway, nft := dialChain(bg, cfg)
	defer gateway.Close()

	head, err := gateway.BlockNumber(bg)
	if err != nil {
		return err
	}
	input, err := nft.PackTotalSupply()
	if err != nil {
		return err
	}
	out, err := gateway.CallContract(bg, nft.Address(), input)
	if err != nil {
		return err
	}
	supply, err := nft.UnpackTotalSupply(out)
	if err != nil {
		return err
	}
	log.Info("Favorite-LLM collection info",
		"address", nft.Address(),
		"chainid", cfg.ChainID,
		"head", head,
		"totalSupply", supply,
		"mintSelector", hexutil.Encode(nft.MintSelector()),
		"transferTopic", nft.TransferTopic(),
	)
	return nil
}
