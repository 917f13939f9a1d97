package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/rakaadit/go-rbac-navigation/config"
	"github.com/rakaadit/go-rbac-navigation/pkg/helpers"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	adminRoleID := upsertRole(db, "admin", "#0ea5e9")
	userRoleID := upsertRole(db, "user", "#10b981")
	fmt.Printf("roles ensured: admin=%s user=%s\n", adminRoleID, userRoleID)

	hash, err := helpers.HashPassword("password123")
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}
	var adminID string
	err = db.QueryRow(`
		INSERT INTO users (email, password_hash, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, "admin@example.com", hash, "Administrator").Scan(&adminID)
	if err != nil {
		log.Fatalf("failed to seed admin user: %v", err)
	}
	assignRole(db, adminID, adminRoleID)
	assignRole(db, adminID, userRoleID)
	fmt.Printf("seeded user: id=%s email=admin@example.com password=password123\n", adminID)

	// Starter navigation: a dashboard, an access-settings divider and
	// its management screens beneath a grouping root.
	dashboard := upsertEntry(db, nil, 0, "Dashboard", "layout-dashboard", "/dashboard", false)
	divider := upsertEntry(db, nil, 1, "Access Settings", "book-key", "", true)
	settings := upsertEntry(db, nil, 2, "Administration", "settings", "/admin", false)
	nav := upsertEntry(db, &settings, 0, "Navigation Management", "square-menu", "/admin/navigation", false)
	roleMgmt := upsertEntry(db, &settings, 1, "Role Management", "shield", "/admin/roles", false)
	userMgmt := upsertEntry(db, &settings, 2, "User Management", "user", "/admin/users", false)

	grant(db, dashboard, adminRoleID, userRoleID)
	grant(db, divider, adminRoleID)
	grant(db, settings, adminRoleID)
	grant(db, nav, adminRoleID)
	grant(db, roleMgmt, adminRoleID)
	grant(db, userMgmt, adminRoleID)
	fmt.Println("seeded starter navigation with role grants")
}

func upsertRole(db *sql.DB, name, color string) string {
	var id string
	err := db.QueryRow(`
		INSERT INTO roles (name, color) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET color = EXCLUDED.color, updated_at = now()
		RETURNING id
	`, name, color).Scan(&id)
	if err != nil {
		log.Fatalf("failed to upsert role %s: %v", name, err)
	}
	return id
}

// Labels are not unique in the schema, so the seeder keys on them manually
// to stay idempotent across reruns.
func upsertEntry(db *sql.DB, parentID *string, sortNum int, label, icon, target string, divider bool) string {
	var id string
	err := db.QueryRow(`SELECT id FROM entries WHERE label = $1`, label).Scan(&id)
	switch {
	case err == nil:
		_, err = db.Exec(`
			UPDATE entries SET parent_id = $2, sort_num = $3, icon = $4, target = $5,
				is_divider = $6, updated_at = now()
			WHERE id = $1
		`, id, parentID, sortNum, icon, target, divider)
		if err != nil {
			log.Fatalf("failed to update entry %s: %v", label, err)
		}
	case errors.Is(err, sql.ErrNoRows):
		err = db.QueryRow(`
			INSERT INTO entries (parent_id, sort_num, label, icon, target, is_active, is_divider)
			VALUES ($1, $2, $3, $4, $5, true, $6)
			RETURNING id
		`, parentID, sortNum, label, icon, target, divider).Scan(&id)
		if err != nil {
			log.Fatalf("failed to insert entry %s: %v", label, err)
		}
	default:
		log.Fatalf("failed to look up entry %s: %v", label, err)
	}
	return id
}

func assignRole(db *sql.DB, userID, roleID string) {
	if _, err := db.Exec(`
		INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
		ON CONFLICT (user_id, role_id) DO NOTHING
	`, userID, roleID); err != nil {
		log.Fatalf("failed to assign role: %v", err)
	}
}

func grant(db *sql.DB, entryID string, roleIDs ...string) {
	for _, roleID := range roleIDs {
		if _, err := db.Exec(`
			INSERT INTO entry_roles (entry_id, role_id) VALUES ($1, $2)
			ON CONFLICT (entry_id, role_id) DO NOTHING
		`, entryID, roleID); err != nil {
			log.Fatalf("failed to grant entry to role: %v", err)
		}
	}
}
