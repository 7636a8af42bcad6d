package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	adminID := seedGuardian(ctx, pool, "塾管理者", "admin@juku.example", "admin-password", []string{"guardian", "admin"})
	log.Printf("admin guardian: %s", adminID)

	guardianID := seedGuardian(ctx, pool, "田中花子", "tanaka@example.com", "guardian-password", []string{"guardian"})
	log.Printf("demo guardian: %s", guardianID)

	taro := seedStudent(ctx, pool, guardianID, "田中太郎")
	hanae := seedStudent(ctx, pool, guardianID, "田中華恵")

	month := time.Now().Format("2006-01")

	// Two tuition courses per sibling: four pooled miles, one discount pair.
	seedPurchase(ctx, pool, guardianID, taro, "進学ゼミ", "算数 標準コース", "算数", "tuition", month, 8800, 0, 8800)
	seedPurchase(ctx, pool, guardianID, taro, "進学ゼミ", "国語 標準コース", "国語", "tuition", month, 8800, 880, 7920)
	seedPurchase(ctx, pool, guardianID, hanae, "進学ゼミ", "英語 標準コース", "英語", "tuition", month, 8800, 0, 8800)
	seedPurchase(ctx, pool, guardianID, hanae, "進学ゼミ", "理科 標準コース", "理科", "tuition", month, 8800, 0, 8800)

	// Duplicate facility fees; only the highest survives grouping.
	seedPurchase(ctx, pool, guardianID, taro, "進学ゼミ", "設備費", "", "facility", month, 330, 0, 330)
	seedPurchase(ctx, pool, guardianID, hanae, "進学ゼミ", "設備費", "", "facility", month, 550, 0, 550)

	seedPurchase(ctx, pool, guardianID, taro, "進学ゼミ", "教材セット", "", "textbook", month, 2200, 0, 2200)

	// Pokkiri household: two 1000-yen courses and no normal ones.
	pokkiri := seedGuardian(ctx, pool, "鈴木一郎", "suzuki@example.com", "guardian-password", []string{"guardian"})
	kenta := seedStudent(ctx, pool, pokkiri, "鈴木健太")
	seedPurchase(ctx, pool, pokkiri, kenta, "進学ゼミ", "1000円ポッキリ講座 算数", "算数ポッキリ", "tuition", month, 1000, 0, 1000)
	seedPurchase(ctx, pool, pokkiri, kenta, "進学ゼミ", "1000円ポッキリ講座 国語", "国語ポッキリ", "tuition", month, 1000, 0, 1000)

	seedMileAccount(ctx, pool, guardianID, 6, 0)
	seedFsDiscount(ctx, pool, guardianID, "お友達紹介割引", "referral", 2000, month)

	log.Println("seeding completed")
}

func seedGuardian(ctx context.Context, pool *pgxpool.Pool, name, email, password string, roles []string) string {
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	var id string
	err = pool.QueryRow(ctx, `
		INSERT INTO guardians (name, email, password_hash, roles)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, roles = EXCLUDED.roles
		RETURNING id
	`, name, email, hash, roles).Scan(&id)
	if err != nil {
		log.Fatalf("seed guardian %s: %v", email, err)
	}
	return id
}

func seedStudent(ctx context.Context, pool *pgxpool.Pool, guardianID, name string) string {
	var id string
	err := pool.QueryRow(ctx, `
		INSERT INTO students (guardian_id, name)
		VALUES ($1, $2)
		RETURNING id
	`, guardianID, name).Scan(&id)
	if err != nil {
		log.Fatalf("seed student %s: %v", name, err)
	}
	return id
}

func seedPurchase(ctx context.Context, pool *pgxpool.Pool, guardianID, studentID, brand, product, course, productType, month string, unitPrice, discount, finalPrice int64) {
	_, err := pool.Exec(ctx, `
		INSERT INTO purchased_items (
			guardian_id, student_id, brand_name, product_name, course_name,
			product_type, billing_month, unit_price, quantity, discount_amount, final_price
		)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, 1, $9, $10)
	`, guardianID, studentID, brand, product, course, productType, month, unitPrice, discount, finalPrice)
	if err != nil {
		log.Fatalf("seed purchase %s: %v", product, err)
	}
}

func seedMileAccount(ctx context.Context, pool *pgxpool.Pool, guardianID string, balance, potential int64) {
	_, err := pool.Exec(ctx, `
		INSERT INTO mile_accounts (guardian_id, balance, potential_discount)
		VALUES ($1, $2, $3)
		ON CONFLICT (guardian_id) DO UPDATE SET balance = EXCLUDED.balance, potential_discount = EXCLUDED.potential_discount
	`, guardianID, balance, potential)
	if err != nil {
		log.Fatalf("seed mile account: %v", err)
	}
}

func seedFsDiscount(ctx context.Context, pool *pgxpool.Pool, guardianID, title, discountType string, value int64, month string) {
	_, err := pool.Exec(ctx, `
		INSERT INTO fs_discounts (guardian_id, title, discount_type, discount_value, billing_month)
		VALUES ($1, $2, $3, $4, $5)
	`, guardianID, title, discountType, value, month)
	if err != nil {
		log.Fatalf("seed fs discount: %v", err)
	}
}
