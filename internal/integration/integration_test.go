package integration

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"sgd-certification-service/internal/app"
	"sgd-certification-service/internal/domain"
	pgloader "sgd-certification-service/internal/infra/postgres"
	infraredis "sgd-certification-service/internal/infra/redis"
	"sgd-certification-service/internal/infra/store"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var codePattern = regexp.MustCompile(`^SGD-\d{4}-\d{3}$`)

func TestExamToCertificateEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	records := openStore(t, ctx, pgURL)
	seedQuestions(t, ctx, records, 15)
	candidate, err := records.CreateUser(ctx, domain.User{DNI: "45678912", FirstName: "Ana", LastName: "Torres", Role: domain.RoleCandidate, PasswordHash: "x", CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	policy := domain.DefaultPolicy()
	questions := infraredis.NewQuestionRepository(redisClient, pgloader.NewQuestionLoader(pool), 5*time.Minute)
	sessions := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	issuer := app.NewIssuer(records, records, policy)
	exams := app.NewExamService(sessions, questions, records, issuer, policy, app.WithRand(rand.New(rand.NewSource(3))))

	actor := domain.Actor{ID: candidate.ID, Role: domain.RoleCandidate}
	session, err := exams.Start(ctx, actor)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if live, _ := sessions.Live(ctx); live != 1 {
		t.Fatalf("expected one live session marker, got %d", live)
	}

	for i, q := range session.Questions() {
		option := q.CorrectIndex
		if i >= 8 {
			option = (option + 1) % len(q.Options)
		}
		if _, err := exams.Answer(ctx, actor, session.ID(), i, option); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
	}

	outcome, err := exams.Submit(ctx, actor, session.ID())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if outcome.Result.Score != 8 || !outcome.Result.Passed || outcome.Certificate == nil {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if !codePattern.MatchString(outcome.Certificate.Code) || outcome.Certificate.Status != domain.CertificateActive {
		t.Fatalf("unexpected certificate %+v", outcome.Certificate)
	}
	if live, _ := sessions.Live(ctx); live != 0 {
		t.Fatalf("expected session marker cleared, got %d", live)
	}

	verified, err := issuer.VerifyDNI(ctx, "45678912")
	if err != nil || verified.Code != outcome.Certificate.Code || verified.HolderName != "Ana Torres" {
		t.Fatalf("verify by dni: %+v err=%v", verified, err)
	}
	results, err := records.ListResultsByUser(ctx, candidate.ID)
	if err != nil || len(results) != 1 || results[0].CertificateCode != outcome.Certificate.Code {
		t.Fatalf("unexpected results %+v err=%v", results, err)
	}

	if _, err := exams.Start(ctx, actor); err == nil {
		t.Fatalf("expected attempts exhausted after a pass")
	}
}

func TestConcurrentIssuanceGetsDistinctCodes(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	records := openStore(t, ctx, pgURL)
	issuer := app.NewIssuer(records, records, domain.DefaultPolicy())

	const n = 8
	resultIDs := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		user, err := records.CreateUser(ctx, domain.User{DNI: fmt.Sprintf("%08d", 10000000+i), FirstName: "P", Role: domain.RoleCandidate, PasswordHash: "x", CreatedAt: time.Now()})
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		result, err := records.CreateResult(ctx, domain.ExamResult{UserID: user.ID, Score: 9, TotalQuestions: 10, Passed: true, CompletedAt: time.Now()})
		if err != nil {
			t.Fatalf("create result: %v", err)
		}
		resultIDs = append(resultIDs, result.ID)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[string]bool{}
	)
	for _, id := range resultIDs {
		id := id
		result, _ := records.GetResult(ctx, id)
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				cert, err := issuer.Issue(ctx, result.UserID, id)
				if err != nil {
					t.Errorf("issue %d: %v", id, err)
					return
				}
				mu.Lock()
				codes[cert.Code] = true
				mu.Unlock()
			}()
		}
	}
	wg.Wait()

	if len(codes) != n {
		t.Fatalf("expected %d distinct codes for %d results, got %v", n, n, codes)
	}
	certs, err := records.ListCertificates(ctx)
	if err != nil || len(certs) != n {
		t.Fatalf("expected one certificate per result, got %d err=%v", len(certs), err)
	}
}

func openStore(t *testing.T, ctx context.Context, dsn string) *store.Store {
	t.Helper()
	db, err := store.Open(store.DriverPostgres, dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := store.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.New(db)
}

func seedQuestions(t *testing.T, ctx context.Context, records *store.Store, n int) {
	t.Helper()
	questions := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		questions = append(questions, domain.Question{
			Prompt:       fmt.Sprintf("Pregunta %d", i+1),
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: i % 4,
			Category:     "general",
		})
	}
	if _, err := records.SaveQuestions(ctx, questions); err != nil {
		t.Fatalf("seed questions: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "sgd", "POSTGRES_PASSWORD": "sgdpass", "POSTGRES_DB": "sgd"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://sgd:sgdpass@%s:%s/sgd?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in -short mode")
	}
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
