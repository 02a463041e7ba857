package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kareemadel/mustaqill_be/internal/models"
	"github.com/kareemadel/mustaqill_be/internal/realtime"
	"github.com/kareemadel/mustaqill_be/internal/services/notify"
	"github.com/kareemadel/mustaqill_be/internal/services/settlement"
)

func setupTestDB(t *testing.T, name string) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.Affiliate{}, &models.Referral{},
		&models.Project{}, &models.Bid{}, &models.Transaction{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newBidApp wires the bid routes behind a header-driven auth stub.
func newBidApp(db *gorm.DB) *fiber.App {
	hub := realtime.NewHub()
	h := NewBidHandler(db, hub, settlement.NewSettlementService(db), notify.NewNotifyService(db, hub, nil))

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userId", c.Get("X-User-ID"))
		return c.Next()
	})
	app.Post("/api/projects/:id/bids", h.Submit)
	app.Post("/api/projects/:id/bids/:bidId/accept", h.Accept)
	app.Patch("/api/bids/:id/withdraw", h.Withdraw)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target string, userID uuid.UUID, body any) (int, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID.String())

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()

	var parsed map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&parsed)
	return resp.StatusCode, parsed
}

func seedBidFixture(t *testing.T, db *gorm.DB) (client, freelancer, other models.User, project models.Project) {
	client = models.User{FullName: "Client", Email: "client@example.com", Password: "hash", Role: models.RoleClient}
	freelancer = models.User{FullName: "Dev One", Email: "one@example.com", Password: "hash", Role: models.RoleFreelancer}
	other = models.User{FullName: "Dev Two", Email: "two@example.com", Password: "hash", Role: models.RoleFreelancer}
	for _, u := range []*models.User{&client, &freelancer, &other} {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	project = models.Project{
		ClientID:    client.ID,
		Title:       "Mobile app",
		Description: "Build the app",
		Category:    "development",
		BudgetMin:   40000,
		Status:      models.ProjectStatusOpen,
	}
	if err := db.Create(&project).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return
}

func TestSubmitBidRejectsAmountBelowPlatformFloor(t *testing.T) {
	db := setupTestDB(t, t.Name())
	app := newBidApp(db)
	_, freelancer, _, project := seedBidFixture(t, db)

	status, body := doRequest(t, app, "POST",
		"/api/projects/"+project.ID.String()+"/bids", freelancer.ID,
		fiber.Map{"amount": 29900, "delivery_days": 7, "proposal": "I can do this"})

	if status != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	errs, _ := body["errors"].(map[string]any)
	if _, ok := errs["amount"]; !ok {
		t.Fatalf("expected an amount error, got %v", body)
	}
}

func TestSubmitBidRejectsContactInfoInProposal(t *testing.T) {
	db := setupTestDB(t, t.Name())
	app := newBidApp(db)
	_, freelancer, _, project := seedBidFixture(t, db)

	status, body := doRequest(t, app, "POST",
		"/api/projects/"+project.ID.String()+"/bids", freelancer.ID,
		fiber.Map{"amount": 45000, "delivery_days": 7, "proposal": "Ping me on WhatsApp"})

	if status != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	errs, _ := body["errors"].(map[string]any)
	if _, ok := errs["proposal"]; !ok {
		t.Fatalf("expected a proposal error, got %v", body)
	}
}

func TestSubmitBidComputesCommission(t *testing.T) {
	db := setupTestDB(t, t.Name())
	app := newBidApp(db)
	client, freelancer, _, project := seedBidFixture(t, db)

	status, _ := doRequest(t, app, "POST",
		"/api/projects/"+project.ID.String()+"/bids", freelancer.ID,
		fiber.Map{"amount": 45000, "delivery_days": 14, "proposal": "Two weeks, tested"})
	if status != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201", status)
	}

	var bid models.Bid
	if err := db.Where("project_id = ? AND freelancer_id = ?", project.ID, freelancer.ID).
		First(&bid).Error; err != nil {
		t.Fatalf("load bid: %v", err)
	}
	if bid.FreelancerCommission != 9000 {
		t.Fatalf("commission = %d cents, want 9000 (20%% of 45000)", bid.FreelancerCommission)
	}
	if bid.Status != models.BidStatusPending {
		t.Fatalf("status = %s, want pending", bid.Status)
	}

	// The client gets a stored notification.
	var n int64
	db.Model(&models.Notification{}).Where("user_id = ?", client.ID).Count(&n)
	if n != 1 {
		t.Fatalf("client notifications = %d, want 1", n)
	}
}

func TestSubmitBidOncePerProject(t *testing.T) {
	db := setupTestDB(t, t.Name())
	app := newBidApp(db)
	_, freelancer, _, project := seedBidFixture(t, db)

	body := fiber.Map{"amount": 45000, "delivery_days": 14, "proposal": "First offer"}
	status, _ := doRequest(t, app, "POST",
		"/api/projects/"+project.ID.String()+"/bids", freelancer.ID, body)
	if status != fiber.StatusCreated {
		t.Fatalf("first bid status = %d, want 201", status)
	}

	status, _ = doRequest(t, app, "POST",
		"/api/projects/"+project.ID.String()+"/bids", freelancer.ID, body)
	if status != fiber.StatusConflict {
		t.Fatalf("second bid status = %d, want 409", status)
	}
}

func TestSubmitBidRejectsOwnProject(t *testing.T) {
	db := setupTestDB(t, t.Name())
	app := newBidApp(db)
	client, _, _, project := seedBidFixture(t, db)

	status, _ := doRequest(t, app, "POST",
		"/api/projects/"+project.ID.String()+"/bids", client.ID,
		fiber.Map{"amount": 45000, "delivery_days": 7, "proposal": "Bidding on my own work"})
	if status != fiber.StatusForbidden {
		t.Fatalf("status = %d, want 403", status)
	}
}

func TestAcceptBidAwardsProjectAndRejectsSiblings(t *testing.T) {
	db := setupTestDB(t, t.Name())
	app := newBidApp(db)
	client, freelancer, other, project := seedBidFixture(t, db)

	for _, u := range []models.User{freelancer, other} {
		status, _ := doRequest(t, app, "POST",
			"/api/projects/"+project.ID.String()+"/bids", u.ID,
			fiber.Map{"amount": 45000, "delivery_days": 14, "proposal": "Solid plan here"})
		if status != fiber.StatusCreated {
			t.Fatalf("seed bid for %s: status %d", u.Email, status)
		}
	}

	var winner models.Bid
	db.Where("project_id = ? AND freelancer_id = ?", project.ID, freelancer.ID).First(&winner)

	status, _ := doRequest(t, app, "POST",
		"/api/projects/"+project.ID.String()+"/bids/"+winner.ID.String()+"/accept",
		client.ID, nil)
	if status != fiber.StatusOK {
		t.Fatalf("accept status = %d, want 200", status)
	}

	var reloadedProject models.Project
	db.First(&reloadedProject, "id = ?", project.ID)
	if reloadedProject.Status != models.ProjectStatusInProgress {
		t.Fatalf("project status = %s, want in_progress", reloadedProject.Status)
	}

	var reloadedWinner, loser models.Bid
	db.First(&reloadedWinner, "id = ?", winner.ID)
	db.Where("project_id = ? AND freelancer_id = ?", project.ID, other.ID).First(&loser)
	if reloadedWinner.Status != models.BidStatusAccepted {
		t.Fatalf("winner status = %s, want accepted", reloadedWinner.Status)
	}
	if loser.Status != models.BidStatusRejected {
		t.Fatalf("sibling status = %s, want rejected", loser.Status)
	}

	var payment models.Transaction
	if err := db.Where("project_id = ? AND type = ?", project.ID, models.TransactionTypeProjectPayment).
		First(&payment).Error; err != nil {
		t.Fatalf("load payment: %v", err)
	}
	if payment.Amount != 9000 || payment.UserID != freelancer.ID {
		t.Fatalf("payment = %d cents to %s", payment.Amount, payment.UserID)
	}
}

func TestAcceptBidLoserGetsConflict(t *testing.T) {
	db := setupTestDB(t, t.Name())
	app := newBidApp(db)
	client, freelancer, other, project := seedBidFixture(t, db)

	for _, u := range []models.User{freelancer, other} {
		doRequest(t, app, "POST",
			"/api/projects/"+project.ID.String()+"/bids", u.ID,
			fiber.Map{"amount": 45000, "delivery_days": 14, "proposal": "Solid plan here"})
	}

	var first, second models.Bid
	db.Where("project_id = ? AND freelancer_id = ?", project.ID, freelancer.ID).First(&first)
	db.Where("project_id = ? AND freelancer_id = ?", project.ID, other.ID).First(&second)

	status, _ := doRequest(t, app, "POST",
		"/api/projects/"+project.ID.String()+"/bids/"+first.ID.String()+"/accept",
		client.ID, nil)
	if status != fiber.StatusOK {
		t.Fatalf("first accept status = %d", status)
	}

	// The second award loses: its bid was already auto-rejected.
	status, _ = doRequest(t, app, "POST",
		"/api/projects/"+project.ID.String()+"/bids/"+second.ID.String()+"/accept",
		client.ID, nil)
	if status != fiber.StatusConflict {
		t.Fatalf("second accept status = %d, want 409", status)
	}

	var count int64
	db.Model(&models.Transaction{}).Where("project_id = ?", project.ID).Count(&count)
	if count != 1 {
		t.Fatalf("transactions = %d, want exactly 1", count)
	}
}

func TestAcceptBidRequiresOwnership(t *testing.T) {
	db := setupTestDB(t, t.Name())
	app := newBidApp(db)
	_, freelancer, other, project := seedBidFixture(t, db)

	doRequest(t, app, "POST",
		"/api/projects/"+project.ID.String()+"/bids", freelancer.ID,
		fiber.Map{"amount": 45000, "delivery_days": 14, "proposal": "Solid plan here"})

	var bid models.Bid
	db.Where("project_id = ?", project.ID).First(&bid)

	status, _ := doRequest(t, app, "POST",
		"/api/projects/"+project.ID.String()+"/bids/"+bid.ID.String()+"/accept",
		other.ID, nil)
	if status != fiber.StatusForbidden {
		t.Fatalf("status = %d, want 403", status)
	}
}

func TestWithdrawBid(t *testing.T) {
	db := setupTestDB(t, t.Name())
	app := newBidApp(db)
	_, freelancer, other, project := seedBidFixture(t, db)

	doRequest(t, app, "POST",
		"/api/projects/"+project.ID.String()+"/bids", freelancer.ID,
		fiber.Map{"amount": 45000, "delivery_days": 14, "proposal": "Solid plan here"})

	var bid models.Bid
	db.Where("project_id = ?", project.ID).First(&bid)

	// Another freelancer cannot touch it.
	status, _ := doRequest(t, app, "PATCH",
		"/api/bids/"+bid.ID.String()+"/withdraw", other.ID, nil)
	if status == fiber.StatusOK {
		t.Fatal("withdraw must be restricted to the bid owner")
	}

	status, _ = doRequest(t, app, "PATCH",
		"/api/bids/"+bid.ID.String()+"/withdraw", freelancer.ID, nil)
	if status != fiber.StatusOK {
		t.Fatalf("withdraw status = %d, want 200", status)
	}

	var reloaded models.Bid
	db.First(&reloaded, "id = ?", bid.ID)
	if reloaded.Status != models.BidStatusWithdrawn {
		t.Fatalf("status = %s, want withdrawn", reloaded.Status)
	}
}
