package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/go-chi/httplog/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/trimlink/trimlink/internal/auth"
	"github.com/trimlink/trimlink/internal/models"
	"github.com/trimlink/trimlink/internal/service"
	"github.com/trimlink/trimlink/pkg/device"
	"github.com/trimlink/trimlink/pkg/response"
)

const testBaseURL = "http://sho.rt"

type MockURLService struct {
	mock.Mock
}

func (s *MockURLService) CreateShortURL(ctx context.Context, ownerID uuid.UUID, originalURL, customAlias string, expiresInDays int) (*models.URL, bool, error) {
	args := s.Called(ctx, ownerID, originalURL, customAlias, expiresInDays)
	url, _ := args.Get(0).(*models.URL)
	return url, args.Bool(1), args.Error(2)
}

func (s *MockURLService) Redirect(ctx context.Context, identifier string, meta service.VisitMeta) (string, error) {
	args := s.Called(ctx, identifier, meta)
	return args.String(0), args.Error(1)
}

func (s *MockURLService) GetAnalytics(ctx context.Context, ownerID uuid.UUID, identifier string, windowDays int) (*service.URLAnalytics, error) {
	args := s.Called(ctx, ownerID, identifier, windowDays)
	analytics, _ := args.Get(0).(*service.URLAnalytics)
	return analytics, args.Error(1)
}

func (s *MockURLService) ListOwnerURLs(ctx context.Context, ownerID uuid.UUID) ([]models.URL, error) {
	args := s.Called(ctx, ownerID)
	urls, _ := args.Get(0).([]models.URL)
	return urls, args.Error(1)
}

func (s *MockURLService) GetAggregatedAnalytics(ctx context.Context, ownerID uuid.UUID) (*service.AggregatedAnalytics, error) {
	args := s.Called(ctx, ownerID)
	analytics, _ := args.Get(0).(*service.AggregatedAnalytics)
	return analytics, args.Error(1)
}

type HandlersTestSuite struct {
	suite.Suite
	logger     *httplog.Logger
	tokens     *auth.TokenService
	urlSvcMock *MockURLService
	server     *httptest.Server
	e          *httpexpect.Expect
}

func (suite *HandlersTestSuite) SetupSuite() {
	suite.logger = httplog.NewLogger("", httplog.Options{Writer: io.Discard})
	suite.tokens = auth.NewTokenService("test-secret", time.Hour)
}

func (suite *HandlersTestSuite) SetupSubTest() {
	suite.urlSvcMock = new(MockURLService)
	router := NewRouter(suite.logger, suite.urlSvcMock, suite.tokens, testBaseURL)
	suite.server = httptest.NewServer(router)
	suite.e = httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  suite.server.URL,
		Reporter: httpexpect.NewAssertReporter(suite.T()),
		Client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	})
}

func (suite *HandlersTestSuite) TearDownSubTest() {
	suite.urlSvcMock.AssertExpectations(suite.T())
	suite.server.Close()
}

func (suite *HandlersTestSuite) TestPing() {
	const path = "/api/v1/ping"

	suite.Run("success", func() {
		suite.e.GET(path).
			Expect().
			Status(http.StatusOK).
			Text().IsEqual("pong\n")
	})
}

func (suite *HandlersTestSuite) TestCreateURL() {
	const path = "/api/v1/urls"

	suite.Run("empty request body", func() {
		suite.e.POST(path).
			Expect().
			Status(http.StatusBadRequest).
			HasContentType("application/json").
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.EmptyRequestBodyResponse.Message)
	})

	suite.Run("invalid destination url", func() {
		suite.e.POST(path).
			WithJSON(map[string]any{"url": "not-a-url"}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("error", "Validation Error")
	})

	suite.Run("invalid alias syntax", func() {
		suite.e.POST(path).
			WithJSON(map[string]any{"url": "https://example.com", "custom_alias": "bad alias!"}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("error", "Validation Error")
	})

	suite.Run("alias taken", func() {
		suite.urlSvcMock.
			On("CreateShortURL", mock.Anything, mock.Anything, "https://example.com", "my-link", 0).
			Return(nil, false, service.ErrAliasTaken).Once()

		suite.e.POST(path).
			WithJSON(map[string]any{"url": "https://example.com", "custom_alias": "my-link"}).
			Expect().
			Status(http.StatusConflict).
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.AliasTakenResponse.Message)
	})

	suite.Run("server error", func() {
		suite.urlSvcMock.
			On("CreateShortURL", mock.Anything, mock.Anything, "https://example.com", "", 0).
			Return(nil, false, assert.AnError).Once()

		suite.e.POST(path).
			WithJSON(map[string]any{"url": "https://example.com"}).
			Expect().
			Status(http.StatusInternalServerError).
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("message", response.ServerErrorResponse.Message)
	})

	suite.Run("created", func() {
		url := &models.URL{
			ID:          1,
			ShortCode:   "abc1234",
			OriginalURL: "https://example.com",
			CreatedAt:   time.Now().UTC(),
		}
		suite.urlSvcMock.
			On("CreateShortURL", mock.Anything, mock.Anything, "https://example.com", "", 0).
			Return(url, true, nil).Once()

		data := suite.e.POST(path).
			WithJSON(map[string]any{"url": "https://example.com"}).
			Expect().
			Status(http.StatusCreated).
			JSON().Object().
			HasValue("status", response.StatusSuccess).
			Value("data").Object()

		data.HasValue("short_code", "abc1234")
		data.HasValue("short_url", testBaseURL+"/abc1234")
		data.HasValue("original_url", "https://example.com")
	})

	suite.Run("existing record returned for repeated destination", func() {
		url := &models.URL{
			ID:          1,
			ShortCode:   "abc1234",
			OriginalURL: "https://example.com",
			CreatedAt:   time.Now().UTC(),
		}
		suite.urlSvcMock.
			On("CreateShortURL", mock.Anything, mock.Anything, "https://example.com", "", 0).
			Return(url, false, nil).Once()

		suite.e.POST(path).
			WithJSON(map[string]any{"url": "https://example.com"}).
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			HasValue("status", response.StatusSuccess).
			Value("data").Object().
			HasValue("short_code", "abc1234")
	})

	suite.Run("alias shown as the shared code", func() {
		url := &models.URL{
			ID:          1,
			ShortCode:   "abc1234",
			CustomAlias: "my-link",
			OriginalURL: "https://example.com",
			CreatedAt:   time.Now().UTC(),
		}
		suite.urlSvcMock.
			On("CreateShortURL", mock.Anything, mock.Anything, "https://example.com", "my-link", 0).
			Return(url, true, nil).Once()

		data := suite.e.POST(path).
			WithJSON(map[string]any{"url": "https://example.com", "custom_alias": "my-link"}).
			Expect().
			Status(http.StatusCreated).
			JSON().Object().
			Value("data").Object()

		data.HasValue("short_code", "my-link")
		data.HasValue("short_url", testBaseURL+"/my-link")
	})

	suite.Run("invalid token is rejected", func() {
		suite.e.POST(path).
			WithHeader("Authorization", "Bearer not-a-token").
			WithJSON(map[string]any{"url": "https://example.com"}).
			Expect().
			Status(http.StatusUnauthorized).
			JSON().Object().
			HasValue("status", response.StatusError)
	})
}

func (suite *HandlersTestSuite) TestRedirect() {
	suite.Run("not found", func() {
		suite.urlSvcMock.
			On("Redirect", mock.Anything, "missing", mock.Anything).
			Return("", service.ErrURLNotFound).Once()

		suite.e.GET("/missing").
			Expect().
			Status(http.StatusNotFound).
			JSON().Object().
			HasValue("message", response.ResourceNotFoundResponse.Message)
	})

	suite.Run("expired", func() {
		suite.urlSvcMock.
			On("Redirect", mock.Anything, "old", mock.Anything).
			Return("", service.ErrURLExpired).Once()

		suite.e.GET("/old").
			Expect().
			Status(http.StatusGone).
			JSON().Object().
			HasValue("message", response.URLExpiredResponse.Message)
	})

	suite.Run("success", func() {
		suite.urlSvcMock.
			On("Redirect", mock.Anything, "abc1234", mock.Anything).
			Return("https://example.com/a", nil).Once()

		suite.e.GET("/abc1234").
			Expect().
			Status(http.StatusFound).
			Header("Location").IsEqual("https://example.com/a")
	})

	suite.Run("user agent reaches the service", func() {
		suite.urlSvcMock.
			On("Redirect", mock.Anything, "abc1234", mock.MatchedBy(func(meta service.VisitMeta) bool {
				return meta.UserAgent == "Mozilla/5.0 Mobile"
			})).
			Return("https://example.com/a", nil).Once()

		suite.e.GET("/abc1234").
			WithHeader("User-Agent", "Mozilla/5.0 Mobile").
			Expect().
			Status(http.StatusFound)
	})
}

func (suite *HandlersTestSuite) TestListURLs() {
	const path = "/api/v1/urls"

	suite.Run("success", func() {
		urls := []models.URL{
			{ID: 2, ShortCode: "newer12", OriginalURL: "https://example.com/b", CreatedAt: time.Now().UTC()},
			{ID: 1, ShortCode: "older12", CustomAlias: "my-link", OriginalURL: "https://example.com/a", CreatedAt: time.Now().UTC()},
		}
		suite.urlSvcMock.
			On("ListOwnerURLs", mock.Anything, mock.Anything).
			Return(urls, nil).Once()

		data := suite.e.GET(path).
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			HasValue("status", response.StatusSuccess).
			Value("data").Array()

		data.Length().IsEqual(2)
		data.Value(0).Object().HasValue("short_code", "newer12")
		data.Value(1).Object().HasValue("short_code", "my-link")
	})
}

func (suite *HandlersTestSuite) TestGetURLAnalytics() {
	const path = "/api/v1/urls/abc1234/analytics"

	suite.Run("not found", func() {
		suite.urlSvcMock.
			On("GetAnalytics", mock.Anything, mock.Anything, "abc1234", 0).
			Return(nil, service.ErrURLNotFound).Once()

		suite.e.GET(path).
			Expect().
			Status(http.StatusNotFound).
			JSON().Object().
			HasValue("message", response.ResourceNotFoundResponse.Message)
	})

	suite.Run("forbidden for foreign records", func() {
		suite.urlSvcMock.
			On("GetAnalytics", mock.Anything, mock.Anything, "abc1234", 0).
			Return(nil, service.ErrForbidden).Once()

		suite.e.GET(path).
			Expect().
			Status(http.StatusForbidden).
			JSON().Object().
			HasValue("message", response.ForbiddenResponse.Message)
	})

	suite.Run("success", func() {
		analytics := &service.URLAnalytics{
			URL:       &models.URL{ID: 1, ShortCode: "abc1234", VisitCount: 3},
			Countries: map[string]int64{"US": 2, "DE": 1},
			Devices:   map[device.Class]int64{device.Mobile: 2, device.Desktop: 1},
			Timeline:  map[string]int64{"2024-01-02": 3},
		}
		suite.urlSvcMock.
			On("GetAnalytics", mock.Anything, mock.Anything, "abc1234", 0).
			Return(analytics, nil).Once()

		data := suite.e.GET(path).
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			HasValue("status", response.StatusSuccess).
			Value("data").Object()

		data.HasValue("visit_count", 3)
		data.Value("countries").Object().HasValue("US", 2)
		data.Value("devices").Object().HasValue("mobile", 2)
		data.Value("timeline").Object().HasValue("2024-01-02", 3)
	})

	suite.Run("window days query param", func() {
		suite.urlSvcMock.
			On("GetAnalytics", mock.Anything, mock.Anything, "abc1234", 30).
			Return(&service.URLAnalytics{
				URL:       &models.URL{ID: 1, ShortCode: "abc1234"},
				Countries: map[string]int64{},
				Devices:   map[device.Class]int64{},
				Timeline:  map[string]int64{},
			}, nil).Once()

		suite.e.GET(path).
			WithQuery("window_days", 30).
			Expect().
			Status(http.StatusOK)
	})
}

func (suite *HandlersTestSuite) TestAggregatedAnalytics() {
	const path = "/api/v1/analytics"

	suite.Run("success", func() {
		analytics := &service.AggregatedAnalytics{
			Countries: map[string]int64{"US": 5},
			Devices:   map[device.Class]int64{device.Mobile: 5},
		}
		suite.urlSvcMock.
			On("GetAggregatedAnalytics", mock.Anything, mock.Anything).
			Return(analytics, nil).Once()

		data := suite.e.GET(path).
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			HasValue("status", response.StatusSuccess).
			Value("data").Object()

		data.Value("countries").Object().HasValue("US", 5)
		data.Value("devices").Object().HasValue("mobile", 5)
	})
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}
