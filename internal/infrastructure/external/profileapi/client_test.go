package profileapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/pykids/progress-hub/internal/domain/curriculum"
	"github.com/pykids/progress-hub/internal/domain/progress"
)

func TestProfileDTO_Parsing(t *testing.T) {
	jsonData := `{
    "id": "user-42",
    "email": "mira@pykids.dev",
    "selectedAvatar": "robot",
    "progress": {
        "variables": {
            "var-intro": {"completed": true, "score": 10, "completedAt": "2025-07-01T10:00:00Z"},
            "quiz": {"completed": true, "completedAt": "2025-07-02T09:30:00Z"}
        },
        "loops": {
            "loop-basics": {"completed": false, "score": 0}
        }
    },
    "totalScore": 10,
    "completedLessons": 1,
    "completedQuizzes": 1,
    "lastActiveLesson": {"moduleId": "loops", "topicId": "loop-basics"},
    "createdAt": "2025-06-20T08:00:00Z"
}`

	var dto ProfileDTO
	err := json.Unmarshal([]byte(jsonData), &dto)
	assert.NoError(t, err)

	assert.Equal(t, "user-42", dto.ID)
	assert.Equal(t, "mira@pykids.dev", dto.Email)
	assert.Equal(t, "robot", dto.SelectedAvatar)
	assert.Equal(t, 10, dto.TotalScore)
	assert.Equal(t, 1, dto.CompletedLessons)
	assert.Equal(t, 1, dto.CompletedQuizzes)
	assert.Len(t, dto.Progress, 2)

	lesson := dto.Progress["variables"]["var-intro"]
	assert.True(t, lesson.Completed)
	assert.NotNil(t, lesson.Score)
	assert.Equal(t, 10, *lesson.Score)
	assert.NotNil(t, lesson.CompletedAt)

	// Historical rows written before the score column existed omit it.
	quiz := dto.Progress["variables"]["quiz"]
	assert.True(t, quiz.Completed)
	assert.Nil(t, quiz.Score)

	assert.NotNil(t, dto.LastActiveLesson)
	assert.Equal(t, "loops", dto.LastActiveLesson.ModuleID)
	assert.Equal(t, "loop-basics", dto.LastActiveLesson.TopicID)
}

func TestMapper_ProfileFromDTO(t *testing.T) {
	score := 80
	completedAt := "2025-07-01T10:00:00Z"
	dto := &ProfileDTO{
		ID:             "user-42",
		Email:          "mira@pykids.dev",
		SelectedAvatar: "robot",
		Progress: map[string]map[string]RecordDTO{
			"variables": {
				"var-intro": {Completed: true, Score: &score, CompletedAt: &completedAt},
				"quiz":      {Completed: true},
			},
		},
		TotalScore:       80,
		CompletedLessons: 1,
		CompletedQuizzes: 1,
		LastActiveLesson: &PointerDTO{ModuleID: "variables", TopicID: "quiz"},
	}

	mapper := NewMapper()
	p, err := mapper.ProfileFromDTO(dto)
	assert.NoError(t, err)

	assert.Equal(t, "user-42", p.ID)
	assert.Equal(t, 80, p.TotalScore)
	assert.Equal(t, 2, p.Progress.Len())

	rec, ok := p.Progress.Get("variables", "var-intro")
	assert.True(t, ok)
	assert.True(t, rec.Completed)
	assert.Equal(t, 80, rec.Score)
	assert.NotNil(t, rec.CompletedAt)
	assert.Equal(t, time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC), rec.CompletedAt.UTC())

	// A missing score maps to zero, not to an error.
	quizRec, ok := p.Progress.Get("variables", curriculum.QuizTopicID)
	assert.True(t, ok)
	assert.Equal(t, 0, quizRec.Score)

	assert.NotNil(t, p.LastActiveLesson)
	assert.Equal(t, "variables", p.LastActiveLesson.ModuleID)
}

func TestMapper_ProfileFromDTO_Nil(t *testing.T) {
	mapper := NewMapper()
	_, err := mapper.ProfileFromDTO(nil)
	assert.ErrorIs(t, err, ErrNilDTO)
}

func TestMapper_UpdateToDTO(t *testing.T) {
	u, err := progress.NewUpdate("user-42", "loops", "loop-basics", true, 15, curriculum.TypeLesson)
	assert.NoError(t, err)

	mapper := NewMapper()
	req := mapper.UpdateToDTO(u)

	assert.Equal(t, "loops", req.ModuleID)
	assert.Equal(t, "loop-basics", req.TopicID)
	assert.True(t, req.Completed)
	assert.NotNil(t, req.Score)
	assert.Equal(t, 15, *req.Score)

	// The zero score is a real value and must survive serialization.
	zero, err := progress.NewUpdate("user-42", "loops", "quiz", true, 0, curriculum.TypeQuiz)
	assert.NoError(t, err)

	body, err := json.Marshal(mapper.UpdateToDTO(zero))
	assert.NoError(t, err)
	assert.Contains(t, string(body), `"score":0`)
}

func TestMapper_ProfileFromLiteDTO(t *testing.T) {
	mapper := NewMapper()
	p, err := mapper.ProfileFromLiteDTO(&ProfileLiteDTO{
		ID:             "user-7",
		Email:          "timur@pykids.dev",
		SelectedAvatar: "astronaut",
	})
	assert.NoError(t, err)

	assert.Equal(t, "user-7", p.ID)
	assert.Equal(t, "astronaut", p.SelectedAvatar)
	assert.NotNil(t, p.Progress)
	assert.Equal(t, 0, p.Progress.Len())
}

func TestParseTimestamp_Formats(t *testing.T) {
	rfc := "2025-07-01T10:00:00Z"
	assert.Equal(t, time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC), parseTimestamp(&rfc))

	// Older Python deployments emit naive ISO 8601 with microseconds.
	naive := "2025-07-01T10:00:00.123456"
	parsed := parseTimestamp(&naive)
	assert.False(t, parsed.IsZero())
	assert.Equal(t, 2025, parsed.Year())

	garbage := "yesterday"
	assert.True(t, parseTimestamp(&garbage).IsZero())
	assert.True(t, parseTimestamp(nil).IsZero())
}

func TestClassifyAPIError(t *testing.T) {
	notFound := classifyAPIError(&APIErrorDTO{Message: "User not found", StatusCode: http.StatusNotFound})
	assert.ErrorIs(t, notFound, ErrNotFound)

	forbidden := classifyAPIError(&APIErrorDTO{Message: "Forbidden", StatusCode: http.StatusForbidden})
	assert.ErrorIs(t, forbidden, ErrForbidden)

	unauthorized := classifyAPIError(&APIErrorDTO{Message: "Invalid token", StatusCode: http.StatusUnauthorized})
	assert.ErrorIs(t, unauthorized, ErrUnauthorized)

	// Server errors stay as-is so the retry loop can keep working on them.
	server := &APIErrorDTO{Message: "Internal server error", StatusCode: http.StatusInternalServerError}
	assert.Equal(t, error(server), classifyAPIError(server))

	plain := errors.New("connection refused")
	assert.Equal(t, plain, classifyAPIError(plain))
}

func TestClient_IsRetryable(t *testing.T) {
	client := NewClient(DefaultClientConfig("http://localhost:5000"))

	assert.True(t, client.isRetryable(&RateLimitError{Message: "rate limit exceeded"}))
	assert.True(t, client.isRetryable(&APIErrorDTO{Message: "boom", StatusCode: 500}))
	assert.True(t, client.isRetryable(errors.New("dial tcp: connection refused")))
	assert.True(t, client.isRetryable(errors.New("unexpected EOF")))

	assert.False(t, client.isRetryable(nil))
	assert.False(t, client.isRetryable(&APIErrorDTO{Message: "Forbidden", StatusCode: 403}))
	assert.False(t, client.isRetryable(&APIErrorDTO{Message: "User not found", StatusCode: 404}))
	assert.False(t, client.isRetryable(errors.New("something else entirely")))
}

func TestHMACTokenProvider_MintsValidToken(t *testing.T) {
	provider := NewHMACTokenProvider("test-secret", "user-42", "mira@pykids.dev", 15*time.Minute)

	signed, err := provider.Token(context.Background())
	assert.NoError(t, err)
	assert.NotEmpty(t, signed)

	var claims Claims
	parsed, err := jwt.ParseWithClaims(signed, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	assert.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "user-42", claims.Subject)
	assert.Equal(t, "mira@pykids.dev", claims.Email)

	// A second call within the TTL returns the cached token.
	again, err := provider.Token(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, signed, again)

	provider.Invalidate()
	fresh, err := provider.Token(context.Background())
	assert.NoError(t, err)
	assert.NotEmpty(t, fresh)
}

func TestStaticTokenProvider(t *testing.T) {
	provider := NewStaticTokenProvider("opaque-token")
	token, err := provider.Token(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "opaque-token", token)

	empty := NewStaticTokenProvider("")
	_, err = empty.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}
