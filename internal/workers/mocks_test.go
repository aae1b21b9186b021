package workers

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/gofrolist/calorie-track-ai-bot/internal/models"
	"github.com/gofrolist/calorie-track-ai-bot/internal/providers/vision"
	"github.com/gofrolist/calorie-track-ai-bot/internal/services"
)

type recordedSend struct {
	ChatID  int64
	Thread  int
	ReplyTo int
	Text    string
}

type stubSender struct {
	mu sync.Mutex

	sends         []recordedSend
	edits         map[string]string
	sendErrByChat map[int64]error

	downloadData []byte
	downloadCT   string
	downloadErr  error
}

func newStubSender() *stubSender {
	return &stubSender{
		edits:         map[string]string{},
		sendErrByChat: map[int64]error{},
		downloadData:  []byte("jpeg-bytes"),
		downloadCT:    "image/jpeg",
	}
}

func (s *stubSender) SendMessage(chatID int64, threadID, replyToMessageID int, text string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sendErrByChat[chatID]; err != nil {
		return 0, err
	}
	s.sends = append(s.sends, recordedSend{ChatID: chatID, Thread: threadID, ReplyTo: replyToMessageID, Text: text})
	return len(s.sends), nil
}

func (s *stubSender) EditInlineMessage(inlineMessageID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits[inlineMessageID] = text
	return nil
}

func (s *stubSender) AnswerInlineQuery(string, []any, int, bool) error { return nil }

func (s *stubSender) SendChatAction(int64, string) error { return nil }

func (s *stubSender) DownloadFile(ctx context.Context, fileID string) ([]byte, string, error) {
	if s.downloadErr != nil {
		return nil, "", s.downloadErr
	}
	return s.downloadData, s.downloadCT, nil
}

func (s *stubSender) sentTo(chatID int64) []recordedSend {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []recordedSend
	for _, m := range s.sends {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

type stubStore struct {
	mu        sync.Mutex
	uploads   map[string]string
	uploadErr error
	signErr   error
}

func newStubStore() *stubStore {
	return &stubStore{uploads: map[string]string{}}
}

func (s *stubStore) Upload(ctx context.Context, objectName, contentType string, r io.Reader) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[objectName] = contentType
	return objectName, nil
}

func (s *stubStore) SignedPutURL(ctx context.Context, objectName, contentType string, ttl time.Duration) (string, error) {
	return "https://signed.example/put/" + objectName, s.signErr
}

func (s *stubStore) SignedGetURL(ctx context.Context, objectName string, ttl time.Duration) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	return "https://signed.example/get/" + objectName, nil
}

type stubVision struct {
	res     *vision.Result
	err     error
	gotRefs []vision.ImageRef
	gotDesc string
}

func (v *stubVision) EstimateMeal(ctx context.Context, images []vision.ImageRef, description string) (*vision.Result, error) {
	v.gotRefs = images
	v.gotDesc = description
	if v.err != nil {
		return nil, v.err
	}
	return v.res, nil
}

type stubThrottle struct {
	mu      sync.Mutex
	due     bool
	marks   [][2]string
	markErr error
}

func (t *stubThrottle) Due(ctx context.Context, chatKey, userKey string) bool { return t.due }

func (t *stubThrottle) Mark(ctx context.Context, chatKey, userKey string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.marks = append(t.marks, [2]string{chatKey, userKey})
	return t.markErr
}

type stubAnalytics struct {
	mu        sync.Mutex
	outcomes  []models.InlineOutcome
	recordErr error
}

func (a *stubAnalytics) Record(ctx context.Context, o models.InlineOutcome) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outcomes = append(a.outcomes, o)
	return a.recordErr
}

func (a *stubAnalytics) Summary(ctx context.Context, from, to time.Time, chatType string) (*services.AnalyticsSummary, error) {
	return nil, nil
}

type stubEstimates struct {
	est     *models.Estimate
	err     error
	gotIDs  []string
	gotDesc string
}

func (s *stubEstimates) Dispatch(ctx context.Context, photoIDs []string, description string) (string, error) {
	return "", nil
}

func (s *stubEstimates) EstimateFromPhotos(ctx context.Context, photoIDs []string, description string) (*models.Estimate, error) {
	s.gotIDs = photoIDs
	s.gotDesc = description
	if s.err != nil {
		return nil, s.err
	}
	return s.est, nil
}

func (s *stubEstimates) GetByID(ctx context.Context, id string) (*models.Estimate, error) {
	return s.est, s.err
}

func (s *stubEstimates) GetByPhotoID(ctx context.Context, photoID string) (*models.Estimate, error) {
	return s.est, s.err
}

type stubMeals struct {
	mu          sync.Mutex
	fromEst     []string
	createErr   error
	createdMeal *models.Meal
}

func (s *stubMeals) Create(ctx context.Context, meal *models.Meal) error { return nil }

func (s *stubMeals) CreateFromEstimate(ctx context.Context, estimateID, requireOwner string) (*models.Meal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fromEst = append(s.fromEst, estimateID)
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.createdMeal, nil
}

func (s *stubMeals) Get(ctx context.Context, userID, mealID string) (*models.Meal, error) {
	return nil, nil
}

func (s *stubMeals) List(ctx context.Context, userID string, from, to time.Time) ([]models.Meal, error) {
	return nil, nil
}

func (s *stubMeals) Update(ctx context.Context, userID, mealID string, upd services.MealUpdate) (*models.Meal, error) {
	return nil, nil
}

func (s *stubMeals) Delete(ctx context.Context, userID, mealID string) error { return nil }

type stubUsers struct {
	user *models.User
	err  error
}

func (s *stubUsers) CreateOrGet(ctx context.Context, telegramID int64, username, language string) (*models.User, error) {
	return s.user, s.err
}

func (s *stubUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.user, s.err
}

func (s *stubUsers) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return s.user, s.err
}

type stubPhotos struct {
	photo *models.Photo
	err   error
}

func (s *stubPhotos) CreatePresigned(ctx context.Context, userID, contentType string) (*services.PresignedPhoto, error) {
	return nil, nil
}

func (s *stubPhotos) Ingest(ctx context.Context, userID string, data []byte, contentType string, displayOrder int, mediaGroupID string) (*models.Photo, error) {
	return s.photo, s.err
}

func (s *stubPhotos) Get(ctx context.Context, id string) (*models.Photo, error) {
	return s.photo, s.err
}
