package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/notify"
	"github.com/noah-isme/storefront-api/internal/user"
	"github.com/noah-isme/storefront-api/internal/voucher"
)

// The stores boot from embedded fixtures, so "seeding" here means exporting
// the live demo dataset to editable JSON for demos and bug reports.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	outDir := flag.String("out", "seed-export", "directory to write the exported fixtures to")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("create output directory: %v", err)
	}

	catalogStore, err := catalog.NewStore(nil)
	if err != nil {
		log.Fatalf("load catalog fixtures: %v", err)
	}
	userStore, err := user.NewStore(nil)
	if err != nil {
		log.Fatalf("load user fixtures: %v", err)
	}
	voucherSvc, err := voucher.NewService(nil)
	if err != nil {
		log.Fatalf("load voucher fixtures: %v", err)
	}
	notifyStore, err := notify.NewStore(nil, "", nil)
	if err != nil {
		log.Fatalf("load notification fixtures: %v", err)
	}

	writeJSON(*outDir, "products.json", catalogStore.List("", ""))
	writeJSON(*outDir, "users.json", userStore.List())
	writeJSON(*outDir, "coupons.json", voucherSvc.List())

	notifications, err := notifyStore.List(context.Background(), "")
	if err != nil {
		log.Fatalf("list notifications: %v", err)
	}
	writeJSON(*outDir, "notifications.json", notifications)

	log.Printf("fixtures exported to %s", *outDir)
}

func writeJSON(dir, name string, v any) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("encode %s: %v", name, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		log.Fatalf("write %s: %v", path, err)
	}
}
