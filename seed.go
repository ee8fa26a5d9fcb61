package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"handyconnect-server/models"
	"handyconnect-server/utils"
)

type seedWorker struct {
	Email           string
	FirstName       string
	LastName        string
	City            string
	Category        models.ServiceCategory
	Specializations []string
	Skills          []string
	Experience      int
	HourlyRate      float64
	Description     string
	PhoneNumber     string
}

var seedWorkers = []seedWorker{
	{
		Email: "youssef.plombier@handyconnect.ma", FirstName: "Youssef", LastName: "Amrani", City: "Casablanca",
		Category: models.CategoryPlumbing, Specializations: []string{"Fuites", "Chauffe-eau"},
		Skills: []string{"Soudure", "Débouchage"}, Experience: 8, HourlyRate: 150,
		Description: "Réparation de fuites, installation de robinets et entretien des chauffe-eau.",
		PhoneNumber: "+212600000001",
	},
	{
		Email: "khadija.elec@handyconnect.ma", FirstName: "Khadija", LastName: "Benali", City: "Rabat",
		Category: models.CategoryElectricity, Specializations: []string{"Tableaux électriques"},
		Skills: []string{"Câblage", "Domotique"}, Experience: 5, HourlyRate: 180,
		Description: "Mise aux normes, dépannage et installation électrique.",
		PhoneNumber: "+212600000002",
	},
	{
		Email: "hamid.peintre@handyconnect.ma", FirstName: "Hamid", LastName: "Tazi", City: "Marrakech",
		Category: models.CategoryPainting, Specializations: []string{"Intérieur", "Tadelakt"},
		Skills: []string{"Enduit", "Décoration"}, Experience: 12, HourlyRate: 120,
		Description: "Peinture intérieure et extérieure, finitions traditionnelles.",
		PhoneNumber: "+212600000003",
	},
}

// runSeed inserts an admin and demo workers into an empty database.
func runSeed(dsn, adminEmail, adminPassword string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("✅ Successfully connected to database")

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("failed to count users (run the server once to migrate): %w", err)
	}
	if count > 0 {
		log.Printf("⚠️  Users already exist (%d found). Skipping seed.", count)
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	insertUser := func(email, password, first, last, city string, role models.UserRole) (int64, error) {
		hash, err := utils.HashPassword(password)
		if err != nil {
			return 0, err
		}
		var id int64
		err = tx.QueryRow(`INSERT INTO users (email, first_name, last_name, password, role, city, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING id`,
			email, first, last, hash, string(role), city, now).Scan(&id)
		return id, err
	}

	if _, err := insertUser(adminEmail, adminPassword, "Admin", "HandyConnect", "Casablanca", models.RoleAdmin); err != nil {
		return fmt.Errorf("failed to insert admin: %w", err)
	}
	log.Printf("✅ Admin %s created", adminEmail)

	for _, w := range seedWorkers {
		userID, err := insertUser(w.Email, adminPassword, w.FirstName, w.LastName, w.City, models.RoleWorker)
		if err != nil {
			return fmt.Errorf("failed to insert worker %s: %w", w.Email, err)
		}
		specializations, _ := json.Marshal(w.Specializations)
		skills, _ := json.Marshal(w.Skills)

		_, err = tx.Exec(`INSERT INTO worker_profiles
			(user_id, category, specializations, experience, skills, certifications, description,
			 hourly_rate, is_available, rating, total_reviews, phone_number, created_at, updated_at)
			VALUES ($1, $2, $3::jsonb, $4, $5::jsonb, '[]'::jsonb, $6, $7, true, 0, 0, $8, $9, $9)`,
			userID, string(w.Category), string(specializations), w.Experience, string(skills),
			w.Description, w.HourlyRate, w.PhoneNumber, now)
		if err != nil {
			return fmt.Errorf("failed to insert profile for %s: %w", w.Email, err)
		}
		log.Printf("✅ Worker %s %s (%s, %s)", w.FirstName, w.LastName, w.Category, w.City)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Println("🔍 Verifying seeded workers...")
	rows, err := db.Query(`SELECT u.id, u.email, p.category, p.hourly_rate FROM users u
		JOIN worker_profiles p ON p.user_id = u.id ORDER BY u.id`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id       int64
			email    string
			category string
			rate     float64
		)
		if err := rows.Scan(&id, &email, &category, &rate); err != nil {
			log.Printf("Failed to scan row: %v", err)
			continue
		}
		log.Printf("%d | %s | %s | %.2f", id, email, category, rate)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	log.Printf("🎉 Seed completed: 1 admin, %d workers", len(seedWorkers))
	return nil
}
