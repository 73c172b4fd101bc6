package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/logger"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/menu/keys"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"github.com/wailsapp/wails/v2/pkg/options/windows"
	wruntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/oraclegame/oracle-game/bindings"
	"github.com/oraclegame/oracle-game/internal/api"
	"github.com/oraclegame/oracle-game/internal/config"
	"github.com/oraclegame/oracle-game/internal/game"
	"github.com/oraclegame/oracle-game/internal/genlayer"
	"github.com/oraclegame/oracle-game/internal/oraclegame"
	"github.com/oraclegame/oracle-game/internal/scripting"
	"github.com/oraclegame/oracle-game/internal/store"
	"github.com/oraclegame/oracle-game/internal/wallet"
)

//go:embed all:frontend/dist
var assets embed.FS

const (
	gameDBName   = "oracle_game.db"
	walletDBName = "wallets.db"
	docsURL      = "https://docs.genlayer.com"
	repoURL      = "https://github.com/oraclegame/oracle-game"
)

var (
	appCtx   context.Context
	appCtxMu sync.RWMutex
)

// buildWindowsOptions configures Windows-specific application settings
func buildWindowsOptions() *windows.Options {
	return &windows.Options{
		// Modern Windows 11 Mica backdrop effect
		BackdropType: windows.Mica,

		// Theme Settings
		Theme: windows.SystemDefault,

		// Custom theme colors for light/dark mode
		CustomTheme: &windows.ThemeSettings{
			// Dark mode (matches app background)
			DarkModeTitleBar:  windows.RGB(27, 38, 54),
			DarkModeTitleText: windows.RGB(226, 232, 240),
			DarkModeBorder:    windows.RGB(51, 65, 85),

			// Light mode
			LightModeTitleBar:  windows.RGB(248, 250, 252),
			LightModeTitleText: windows.RGB(15, 23, 42),
			LightModeBorder:    windows.RGB(226, 232, 240),
		},

		// WebView Configuration
		WebviewIsTransparent: false,
		WindowIsTranslucent:  false,

		// DPI and Zoom
		DisablePinchZoom:     false,
		IsZoomControlEnabled: false,
		ZoomFactor:           1.0,

		// Window Decorations
		DisableWindowIcon:                 false,
		DisableFramelessWindowDecorations: false,

		// Window Class Name
		WindowClassName: "OracleGameWindow",

		// Power Management Callbacks
		OnSuspend: func() {
			log.Println("Windows entering low power mode")
		},
		OnResume: func() {
			log.Println("Windows resuming from low power mode")
		},
	}
}

// buildMacOptions configures macOS-specific application settings
func buildMacOptions() *mac.Options {
	// Load icon for About dialog
	iconData, err := assets.ReadFile("frontend/dist/assets/logo.png")
	var aboutIcon []byte
	if err == nil {
		aboutIcon = iconData
	}

	return &mac.Options{
		// Title Bar Configuration
		TitleBar: &mac.TitleBar{
			TitlebarAppearsTransparent: false,
			HideTitle:                  false,
			HideTitleBar:               false,
			FullSizeContent:            false,
			UseToolbar:                 false,
			HideToolbarSeparator:       true,
		},

		// Appearance - Follow system theme
		WebviewIsTransparent: false,
		WindowIsTranslucent:  false,

		// About Dialog
		About: &mac.AboutInfo{
			Title: "Oracle Game",
			Message: "Create rooms, answer prompts and let the GenLayer AI jury score them.\n\n" +
				"Built with Wails\n\n" +
				"Answers are sent to the OracleGame contract; drafts and results stay on this machine.",
			Icon: aboutIcon,
		},
	}
}

// buildLinuxOptions configures Linux-specific application settings
func buildLinuxOptions() *linux.Options {
	// Load icon for window manager
	iconData, err := assets.ReadFile("frontend/dist/assets/logo.png")
	var windowIcon []byte
	if err == nil {
		windowIcon = iconData
	}

	return &linux.Options{
		// Window Icon
		Icon: windowIcon,

		// WebView Configuration
		WindowIsTranslucent: false,
		WebviewGpuPolicy:    linux.WebviewGpuPolicyAlways,

		// Program Name for window managers
		ProgramName: "oracle-game",
	}
}

func main() {
	log.Printf("Starting Oracle Game (Go %s)...", runtime.Version())

	cfgPath := config.DefaultPath()
	if created, err := config.WriteTemplate(cfgPath); err != nil {
		log.Printf("config template: %v", err)
	} else if created {
		log.Printf("wrote config template to %s", cfgPath)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	dataDir := ensureDataDir(cfg.DataDir)

	db, err := store.New(filepath.Join(dataDir, gameDBName))
	if err != nil {
		log.Fatalf("game store init failed: %v", err)
	}
	// prompts and submissions of a previously configured contract stay hidden
	gameDB := db.ForContract(cfg.ContractAddress)

	metrics := api.NewMetrics()
	client := genlayer.NewClient(genlayer.Config{
		Endpoint:          cfg.Endpoint,
		APIKey:            cfg.EndpointAPIKey,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Observer:          metrics,
	})

	var contract game.Contract
	if cfg.Configured() {
		c, err := oraclegame.New(cfg.ContractAddress, client)
		if err != nil {
			log.Fatalf("contract: %v", err)
		}
		contract = c
	}

	// svc is assigned below; wallet changes only fire after startup.
	var svc *game.Service
	walletMod, err := bindings.NewWalletModule(
		filepath.Join(dataDir, walletDBName),
		bindings.DefaultFallbackSecretsPath(dataDir),
		wallet.ModuleOptions{
			Signer:        client,
			Probe:         endpointProbe(cfg),
			DefaultAPIKey: cfg.EndpointAPIKey,
			ExplorerURL:   cfg.ExplorerURL,
		},
		func(wallet.ActiveStatus) {
			if svc != nil {
				svc.Invalidate()
			}
		},
	)
	if err != nil {
		log.Fatalf("wallet module init failed: %v", err)
	}

	notifier := &game.FanoutNotifier{}
	gameLogger := log.New(os.Stdout, "[Game] ", log.LstdFlags)
	notifier.Add(func(n game.Notification) {
		gameLogger.Printf("toast %s: %s: %s", n.Kind, n.Title, n.Description)
	})
	svc = game.NewService(context.Background(), game.Options{
		Contract: contract,
		Wallet:   walletMod,
		Store:    gameDB,
		Notifier: notifier,
		StaleTimes: game.StaleTimes{
			Rooms:             cfg.Cache.Rooms,
			RoomLeaderboard:   cfg.Cache.RoomLeaderboard,
			GlobalLeaderboard: cfg.Cache.GlobalLeaderboard,
		},
		Logger: gameLogger,
	})
	watcher := game.NewWatcher(svc, cfg.PollInterval, nil)
	drafter := scripting.NewDrafter(nil)

	server := api.NewServer(api.Options{
		Service: svc,
		Store:   gameDB,
		Drafter: drafter,
		Metrics: metrics,
		Token:   cfg.API.Token,
	})
	notifier.Add(server.Hub().Notify)
	listener := api.NewListener(server.Routes(), cfg.API.Port, nil)

	app := bindings.New(bindings.Deps{
		Service:  svc,
		Store:    gameDB,
		Watcher:  watcher,
		Notifier: notifier,
		Drafter:  drafter,
	})

	var stopBackground context.CancelFunc
	startup := func(ctx context.Context) {
		app.Startup(ctx)
		walletMod.Startup(ctx)
		setAppContext(ctx)

		bg, cancel := context.WithCancel(ctx)
		stopBackground = cancel
		go watcher.Run(bg)
		go server.Hub().Run(bg, watcher)

		if err := listener.Start(); err != nil {
			log.Printf("local API failed to start: %v", err)
		} else {
			log.Printf("Local API ready at %s (token enabled: %v)", listener.URL(), cfg.API.Token != "")
		}
	}

	beforeClose := func(ctx context.Context) (prevent bool) {
		app.Shutdown()
		if stopBackground != nil {
			stopBackground()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := listener.Shutdown(shutdownCtx); err != nil {
			log.Printf("local API shutdown error: %v", err)
		}
		if err := walletMod.Shutdown(); err != nil {
			log.Printf("wallet store close error: %v", err)
		}
		if err := db.Close(); err != nil {
			log.Printf("game store close error: %v", err)
		}
		setAppContext(nil)
		log.Println("Application is closing")
		return false
	}

	if err := wails.Run(&options.App{
		// Window Configuration
		Title:             "Oracle Game",
		Width:             1280,
		Height:            800,
		MinWidth:          960,
		MinHeight:         700,
		MaxWidth:          2560,
		MaxHeight:         1440,
		WindowStartState:  options.Normal,
		Frameless:         false,
		DisableResize:     false,
		Fullscreen:        false,
		StartHidden:       false,
		HideWindowOnClose: false,
		AlwaysOnTop:       false,
		BackgroundColour:  &options.RGBA{R: 27, G: 38, B: 54, A: 255},

		// Asset Server
		AssetServer: &assetserver.Options{
			Assets: assets,
		},

		// Application Lifecycle
		OnStartup:     startup,
		OnBeforeClose: beforeClose,
		OnDomReady: func(ctx context.Context) {
			log.Println("DOM is ready")
		},
		OnShutdown: func(ctx context.Context) {
			log.Println("Application shutdown complete")
		},

		// Menu
		Menu: buildAppMenu(dataDir),

		// Bindings
		Bind: []interface{}{app, walletMod},

		// Logging
		LogLevel:           logger.INFO,
		LogLevelProduction: logger.ERROR,

		// User Experience
		EnableDefaultContextMenu:         false,
		EnableFraudulentWebsiteDetection: false,

		// Error Handling
		ErrorFormatter: func(err error) any {
			if err == nil {
				return nil
			}
			return err.Error()
		},

		// Single Instance Lock - prevents multiple app instances
		SingleInstanceLock: &options.SingleInstanceLock{
			UniqueId: "5b0e7c1a-3f42-4d8e-a6b9-oracle-game",
			OnSecondInstanceLaunch: func(data options.SecondInstanceData) {
				log.Printf("Second instance launch prevented. Args: %v", data.Args)
			},
		},

		DragAndDrop: &options.DragAndDrop{
			EnableFileDrop:     false,
			DisableWebViewDrop: true,
		},

		// Platform-Specific Options
		Windows: buildWindowsOptions(),
		Mac:     buildMacOptions(),
		Linux:   buildLinuxOptions(),
	}); err != nil {
		log.Printf("Error running Wails app: %v", err)
		fmt.Printf("Error: %v\n", err)
		panic(err)
	}

	log.Println("Application exited normally")
}

// ensureDataDir creates dir, falling back to the working directory.
func ensureDataDir(dir string) string {
	if dir == "" {
		dir = config.AppDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("data dir mkdir failed: %v; using working directory", err)
		return "."
	}
	return dir
}

// endpointProbe checks a wallet against the contract with a throwaway client
// so a failed check never touches the shared one.
func endpointProbe(cfg config.Config) wallet.Probe {
	return func(ctx context.Context, account, apiKey string) error {
		if !cfg.Configured() {
			return errors.New("contract address not configured")
		}
		probe := genlayer.NewClient(genlayer.Config{
			Endpoint:   cfg.Endpoint,
			Account:    account,
			APIKey:     apiKey,
			MaxRetries: 1,
		})
		c, err := oraclegame.New(cfg.ContractAddress, probe)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		_, err = c.GetRoomCount(ctx)
		return err
	}
}

func buildAppMenu(dataDir string) *menu.Menu {
	rootMenu := menu.NewMenu()

	if runtime.GOOS == "darwin" {
		if appMenu := menu.AppMenu(); appMenu != nil {
			rootMenu.Append(appMenu)
		}
	}

	fileMenu := menu.NewMenu()
	fileMenu.AddText("Open Data Directory", keys.CmdOrCtrl("o"), func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			openPathInExplorer(ctx, dataDir)
		})
	})
	fileMenu.AddText("Open Config File", nil, func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			openPathInExplorer(ctx, config.DefaultPath())
		})
	})
	fileMenu.AddSeparator()
	fileMenu.AddText("Quit", keys.CmdOrCtrl("q"), func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			wruntime.Quit(ctx)
		})
	})
	rootMenu.Append(menu.SubMenu("File", fileMenu))

	viewMenu := menu.NewMenu()
	viewMenu.AddText("Reload Frontend", keys.CmdOrCtrl("r"), func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			wruntime.WindowReloadApp(ctx)
		})
	})
	viewMenu.AddText("Toggle Fullscreen", keys.Combo("f", keys.CmdOrCtrlKey, keys.ShiftKey), func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			toggleFullscreen(ctx)
		})
	})
	rootMenu.Append(menu.SubMenu("View", viewMenu))

	helpMenu := menu.NewMenu()
	helpMenu.AddText("Documentation", nil, func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			wruntime.BrowserOpenURL(ctx, docsURL)
		})
	})
	helpMenu.AddText("Project Repository", nil, func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			wruntime.BrowserOpenURL(ctx, repoURL)
		})
	})
	rootMenu.Append(menu.SubMenu("Help", helpMenu))

	return rootMenu
}

func openPathInExplorer(ctx context.Context, path string) {
	if path == "" {
		return
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		log.Printf("resolve path %s failed: %v", path, err)
		abs = path
	}

	wruntime.BrowserOpenURL(ctx, fileURI(abs))
}

func fileURI(path string) string {
	clean := filepath.ToSlash(path)
	if runtime.GOOS == "windows" && len(clean) > 0 && clean[0] != '/' {
		clean = "/" + clean
	}

	u := url.URL{Scheme: "file", Path: clean}
	return u.String()
}

func toggleFullscreen(ctx context.Context) {
	if wruntime.WindowIsFullscreen(ctx) {
		wruntime.WindowUnfullscreen(ctx)
		return
	}
	wruntime.WindowFullscreen(ctx)
}

func setAppContext(ctx context.Context) {
	appCtxMu.Lock()
	defer appCtxMu.Unlock()
	appCtx = ctx
}

func withAppContext(action func(context.Context)) {
	appCtxMu.RLock()
	ctx := appCtx
	appCtxMu.RUnlock()
	if ctx == nil {
		log.Println("application context not initialised; ignoring menu action")
		return
	}
	action(ctx)
}
