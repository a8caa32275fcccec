package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/apporbit/apporbit-backend/internal/auth"
	"github.com/apporbit/apporbit-backend/internal/config"
	"github.com/apporbit/apporbit-backend/internal/i18n"
	"github.com/apporbit/apporbit-backend/internal/models"
	"github.com/apporbit/apporbit-backend/internal/services"
	"github.com/apporbit/apporbit-backend/internal/store"
)

const (
	adminEmail     = "admin@x.com"
	moderatorEmail = "mod@x.com"
	ownerEmail     = "owner@x.com"
	otherEmail     = "other@x.com"
)

type stubIntents struct{}

func (stubIntents) CreateIntent(_ context.Context, p services.IntentParams) (*services.Intent, error) {
	return &services.Intent{ID: "pi_1", ClientSecret: fmt.Sprintf("pi_1_secret_%d", p.AmountCents)}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type RouterTestSuite struct {
	suite.Suite
	store  *store.Memory
	jwt    *auth.JWTVerifier
	router *gin.Engine
}

func testConfig() *config.Config {
	return &config.Config{
		Payment: config.PaymentConfig{Currency: "usd", Timeout: time.Second},
		CORS:    config.CORSConfig{AllowedOrigins: []string{"*"}},
	}
}

func (s *RouterTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	s.Require().NoError(i18n.Initialize("en"))
}

func (s *RouterTestSuite) SetupTest() {
	s.store = store.NewMemory()
	s.jwt = auth.NewJWTVerifier("test-secret", "apporbit")

	users := services.NewUserService(s.store.Users())
	s.Require().NoError(users.EnsureRole(context.Background(), adminEmail, models.RoleAdmin))
	s.Require().NoError(users.EnsureRole(context.Background(), moderatorEmail, models.RoleModerator))

	storage, err := services.NewStorageService(config.AWSConfig{}, s.T().TempDir(), "http://localhost:3000")
	s.Require().NoError(err)

	s.router = Initialize(Dependencies{
		Store:    s.store,
		Verifier: s.jwt,
		Notifier: services.NewNotificationService(nil),
		Intents:  stubIntents{},
		Storage:  storage,
	}, testConfig())
}

func (s *RouterTestSuite) token(email string) string {
	token, err := s.jwt.GenerateJWT(email, "", time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *RouterTestSuite) do(method, path, email string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if email != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(email))
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" && bytes.HasPrefix(bytes.TrimSpace(w.Body.Bytes()), []byte("{")) {
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (s *RouterTestSuite) createProduct(owner, name string) models.Product {
	w, env := s.do(http.MethodPost, "/products", owner, map[string]interface{}{"name": name, "tags": []string{"tools"}})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var product models.Product
	s.Require().NoError(json.Unmarshal(env.Data, &product))
	return product
}

func (s *RouterTestSuite) getProduct(id uuid.UUID) models.Product {
	w, env := s.do(http.MethodGet, "/products/"+id.String(), "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var product models.Product
	s.Require().NoError(json.Unmarshal(env.Data, &product))
	return product
}

func (s *RouterTestSuite) TestHealth() {
	w, _ := s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, w.Code)

	w, _ = s.do(http.MethodGet, "/", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("AppOrbit Server is Running", w.Body.String())
}

func (s *RouterTestSuite) TestUnauthenticatedMutationIsRejected() {
	w, _ := s.do(http.MethodPost, "/products", "", map[string]string{"name": "Sneaky"})
	s.Equal(http.StatusUnauthorized, w.Code)

	count, err := s.store.Products().Count(context.Background())
	s.Require().NoError(err)
	s.Zero(count)

	req := httptest.NewRequest(http.MethodPost, "/products", bytes.NewBufferString(`{"name":"Sneaky"}`))
	req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *RouterTestSuite) TestRejectedTokenIsForbidden() {
	foreign, err := auth.NewJWTVerifier("other-secret", "apporbit").GenerateJWT(ownerEmail, "", time.Hour)
	s.Require().NoError(err)

	req := httptest.NewRequest(http.MethodPost, "/products", bytes.NewBufferString(`{"name":"Forged"}`))
	req.Header.Set("Authorization", "Bearer "+foreign)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusForbidden, w.Code)
	count, _ := s.store.Products().Count(context.Background())
	s.Zero(count)
}

func (s *RouterTestSuite) TestUpsertUserByEmail() {
	w, _ := s.do(http.MethodPost, "/user", "", map[string]string{"email": "a@x.com", "name": "A"})
	s.Require().Equal(http.StatusOK, w.Code)
	w, _ = s.do(http.MethodPost, "/user", "", map[string]string{"email": "a@x.com", "name": "B"})
	s.Require().Equal(http.StatusOK, w.Code)

	w, env := s.do(http.MethodGet, "/user/a@x.com", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var user models.User
	s.Require().NoError(json.Unmarshal(env.Data, &user))
	s.Equal("B", user.Name)

	users, total, err := s.store.Users().List(context.Background(), store.UserFilter{Search: "a@x.com"})
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Len(users, 1)

	w, _ = s.do(http.MethodPost, "/user", "", map[string]string{"name": "no email"})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterTestSuite) TestRoleLookupIsSelfOnly() {
	w, env := s.do(http.MethodGet, "/user/role/"+moderatorEmail, moderatorEmail, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"role":"moderator"}`, string(env.Data))

	w, _ = s.do(http.MethodGet, "/user/role/"+moderatorEmail, otherEmail, nil)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *RouterTestSuite) TestRoleChangesRequireAdmin() {
	other, err := s.store.Users().Upsert(context.Background(), &models.User{Email: otherEmail})
	s.Require().NoError(err)

	w, _ := s.do(http.MethodPatch, "/user/moderator/"+other.ID.String(), moderatorEmail, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodPatch, "/user/moderator/"+other.ID.String(), adminEmail, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	// The new role applies on the very next request.
	w, _ = s.do(http.MethodGet, "/reports", otherEmail, nil)
	s.Equal(http.StatusOK, w.Code)

	w, _ = s.do(http.MethodPatch, "/user/role/"+other.ID.String(), adminEmail, map[string]string{"role": "user"})
	s.Require().Equal(http.StatusOK, w.Code)
	w, _ = s.do(http.MethodGet, "/reports", otherEmail, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodPatch, "/user/role/"+other.ID.String(), adminEmail, map[string]string{"role": "owner"})
	s.Equal(http.StatusBadRequest, w.Code)

	logs, total, err := s.store.AuditLogs().List(context.Background(), store.AuditFilter{Action: models.AuditActionRoleChanged, ActorEmail: adminEmail})
	s.Require().NoError(err)
	s.EqualValues(2, total)
	s.Equal(other.ID.String(), logs[0].ResourceID)
}

func (s *RouterTestSuite) TestSubscribeIsSelfOrAdmin() {
	_, err := s.store.Users().Upsert(context.Background(), &models.User{Email: ownerEmail})
	s.Require().NoError(err)

	w, _ := s.do(http.MethodPatch, "/user/"+ownerEmail, otherEmail, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w, env := s.do(http.MethodPatch, "/user/"+ownerEmail, ownerEmail, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"matched_count":1,"modified_count":1}`, string(env.Data))
}

func (s *RouterTestSuite) TestAcceptThenRejectFlips() {
	product := s.createProduct(ownerEmail, "Orbit")
	s.Equal(models.ProductStatusPending, product.Status)

	w, _ := s.do(http.MethodPatch, "/products/accept/"+product.ID.String(), ownerEmail, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodPatch, "/products/accept/"+product.ID.String(), moderatorEmail, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(models.ProductStatusAccepted, s.getProduct(product.ID).Status)

	w, env := s.do(http.MethodPatch, "/products/reject/"+product.ID.String(), moderatorEmail, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"matched_count":1,"modified_count":1}`, string(env.Data))
	s.Equal(models.ProductStatusRejected, s.getProduct(product.ID).Status)

	w, _ = s.do(http.MethodPatch, "/products/accept/"+uuid.NewString(), moderatorEmail, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterTestSuite) TestVoteOncePerUser() {
	product := s.createProduct(ownerEmail, "Orbit")

	w, _ := s.do(http.MethodPatch, "/products/vote/"+product.ID.String(), otherEmail, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	w, _ = s.do(http.MethodPatch, "/products/vote/"+product.ID.String(), otherEmail, nil)
	s.Equal(http.StatusConflict, w.Code)

	got := s.getProduct(product.ID)
	s.EqualValues(1, got.Votes)
	s.Equal([]string{otherEmail}, got.Voters)
}

func (s *RouterTestSuite) TestOwnerOrModeratorUpdates() {
	product := s.createProduct(ownerEmail, "Orbit")
	path := "/products/" + product.ID.String()

	w, _ := s.do(http.MethodPatch, path, otherEmail, map[string]string{"name": "Hijacked"})
	s.Equal(http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodPatch, path, ownerEmail, map[string]string{"name": "Orbit 2"})
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("Orbit 2", s.getProduct(product.ID).Name)

	w, _ = s.do(http.MethodPatch, "/products/"+uuid.NewString(), ownerEmail, map[string]string{"name": "Ghost"})
	s.Equal(http.StatusNotFound, w.Code)

	w, env := s.do(http.MethodDelete, path, moderatorEmail, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"deleted_count":1}`, string(env.Data))
}

func (s *RouterTestSuite) TestDeleteReportedProductCascadeIsScoped() {
	target := s.createProduct(ownerEmail, "Target")
	bystander := s.createProduct(ownerEmail, "Bystander")
	for _, id := range []uuid.UUID{target.ID, target.ID, bystander.ID} {
		w, _ := s.do(http.MethodPost, "/report", otherEmail, map[string]string{"product_id": id.String(), "reason": "spam"})
		s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	}

	w, _ := s.do(http.MethodDelete, "/reports/"+target.ID.String(), otherEmail, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w, env := s.do(http.MethodDelete, "/reports/"+target.ID.String(), moderatorEmail, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"product_deleted":1,"votes_deleted":0,"reports_deleted":2}`, string(env.Data))

	w, _ = s.do(http.MethodGet, "/products/"+target.ID.String(), "", nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal(models.ProductStatusPending, s.getProduct(bystander.ID).Status)

	reports, total, err := s.store.Reports().List(context.Background(), store.ReportFilter{})
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Equal(bystander.ID, reports[0].ProductID)
}

func (s *RouterTestSuite) TestStatisticsIncludeEveryStatus() {
	s.createProduct(ownerEmail, "Orbit")

	w, _ := s.do(http.MethodGet, "/admin-statistics", moderatorEmail, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w, env := s.do(http.MethodGet, "/admin-statistics", adminEmail, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var stats services.AdminDashboardStats
	s.Require().NoError(json.Unmarshal(env.Data, &stats))
	s.Equal(map[models.ProductStatus]int64{
		models.ProductStatusPending:  1,
		models.ProductStatusAccepted: 0,
		models.ProductStatusRejected: 0,
	}, stats.ProductsByStatus)
	s.EqualValues(2, stats.TotalUsers)
}

func (s *RouterTestSuite) TestAcceptedListingIsPaginated() {
	for i := 0; i < 3; i++ {
		product := s.createProduct(ownerEmail, fmt.Sprintf("App %d", i))
		w, _ := s.do(http.MethodPatch, "/products/accept/"+product.ID.String(), moderatorEmail, nil)
		s.Require().Equal(http.StatusOK, w.Code)
	}
	s.createProduct(ownerEmail, "Still pending")

	w, env := s.do(http.MethodGet, "/test-products/accepted?page=1&limit=2", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("3", w.Header().Get("X-Total-Count"))

	var products []models.Product
	s.Require().NoError(json.Unmarshal(env.Data, &products))
	s.Len(products, 2)
}

func (s *RouterTestSuite) TestAddProductReturnsInsertedID() {
	w, env := s.do(http.MethodPost, "/add-product", ownerEmail, map[string]string{"name": "Legacy"})
	s.Require().Equal(http.StatusCreated, w.Code)

	var body struct {
		InsertedID uuid.UUID `json:"inserted_id"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &body))
	s.Equal(ownerEmail, s.getProduct(body.InsertedID).OwnerEmail)

	w, env = s.do(http.MethodGet, "/products?email="+ownerEmail, "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var products []models.Product
	s.Require().NoError(json.Unmarshal(env.Data, &products))
	s.Len(products, 1)
}

func (s *RouterTestSuite) TestCouponsAndPaymentIntent() {
	w, _ := s.do(http.MethodPost, "/coupons", ownerEmail, map[string]interface{}{"code": "HALF", "discount_percent": 50})
	s.Equal(http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodPost, "/coupons", adminEmail, map[string]interface{}{"code": "HALF", "discount_percent": 50})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w, _ = s.do(http.MethodPost, "/coupons", adminEmail, map[string]interface{}{"code": "HALF", "discount_percent": 10})
	s.Equal(http.StatusConflict, w.Code)

	w, _ = s.do(http.MethodPost, "/create-payment-intent", "", map[string]interface{}{"price": 10})
	s.Equal(http.StatusUnauthorized, w.Code)

	w, env := s.do(http.MethodPost, "/create-payment-intent", ownerEmail, map[string]interface{}{"price": 10, "coupon_code": "half"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var intent services.PaymentIntentResponse
	s.Require().NoError(json.Unmarshal(env.Data, &intent))
	s.EqualValues(500, intent.Amount)
	s.Equal("pi_1_secret_500", intent.ClientSecret)
}

func (s *RouterTestSuite) TestReviews() {
	product := s.createProduct(ownerEmail, "Orbit")

	w, _ := s.do(http.MethodPost, "/reviews", otherEmail, map[string]interface{}{
		"product_id": product.ID, "rating": 4, "comment": "Solid",
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w, env := s.do(http.MethodGet, "/reviews/"+product.ID.String(), "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var reviews []models.Review
	s.Require().NoError(json.Unmarshal(env.Data, &reviews))
	s.Require().Len(reviews, 1)
	s.Equal(otherEmail, reviews[0].ReviewerEmail)

	w, _ = s.do(http.MethodPost, "/reviews", otherEmail, map[string]interface{}{
		"product_id": uuid.New(), "rating": 4,
	})
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterTestSuite) upload(email, filename string, content []byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("images", filename)
	s.Require().NoError(err)
	_, err = part.Write(content)
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/products/upload-images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if email != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(email))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func pngBytes() []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func (s *RouterTestSuite) TestUploadedImageIsServed() {
	content := pngBytes()
	w := s.upload(ownerEmail, "logo.png", content)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var env envelope
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env))
	var results []services.UploadResult
	s.Require().NoError(json.Unmarshal(env.Data, &results))
	s.Require().Len(results, 1)
	s.Equal("image/png", results[0].MimeType)
	s.Equal(int64(len(content)), results[0].Size)

	u, err := url.Parse(results[0].URL)
	s.Require().NoError(err)
	s.Equal("/uploads/"+results[0].Key, u.Path)

	req := httptest.NewRequest(http.MethodGet, u.Path, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(content, rec.Body.Bytes())
}

func (s *RouterTestSuite) TestUploadRejectsNonImages() {
	w := s.upload(ownerEmail, "notes.txt", []byte("plain text"))
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), i18n.T("en", i18n.KeyFileInvalidType))

	w = s.upload(ownerEmail, "fake.png", []byte("plain text"))
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.upload("", "logo.png", pngBytes())
	s.Equal(http.StatusUnauthorized, w.Code)
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func TestVerifierTimeoutIsGatewayTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	slow := auth.VerifierFunc(func(ctx context.Context, _ string) (*auth.Identity, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	storage, _ := services.NewStorageService(config.AWSConfig{}, "", "")
	r := Initialize(Dependencies{
		Store:    store.NewMemory(),
		Verifier: auth.WithTimeout(slow, 10*time.Millisecond),
		Intents:  stubIntents{},
		Storage:  storage,
	}, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/products", bytes.NewBufferString(`{"name":"Slow"}`))
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUploadWithoutStorageIsUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwt := auth.NewJWTVerifier("test-secret", "apporbit")
	storage, _ := services.NewStorageService(config.AWSConfig{}, "", "")
	s := &RouterTestSuite{jwt: jwt}
	s.SetT(t)
	s.router = Initialize(Dependencies{
		Store:    store.NewMemory(),
		Verifier: jwt,
		Intents:  stubIntents{},
		Storage:  storage,
	}, testConfig())

	w := s.upload(ownerEmail, "logo.png", pngBytes())
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", w.Code, w.Body.String())
	}
}
