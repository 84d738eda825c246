package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/tiffinstash/ops-front/internal/crypto"
	"github.com/tiffinstash/ops-front/internal/log"
	"github.com/tiffinstash/ops-front/internal/session"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStorage keeps sessions in Google Cloud Firestore so logins
// survive restarts of the Cloud Run instance.
//
// Error handling strategy:
// - Read operations: return errors (a session must be resolvable for auth
//   to work).
// - Background deletes (expired records): log and continue.
//
// Session payloads are encrypted at rest; only the expiry timestamp is
// stored in the clear so expired documents can be skipped without a key.
type FirestoreStorage struct {
	client    *firestore.Client
	encryptor crypto.Encryptor
	prefix    string
}

// Ensure FirestoreStorage implements the Storage interface
var _ Storage = (*FirestoreStorage)(nil)

// sessionDoc is the stored shape of an authenticated session
type sessionDoc struct {
	ID        string    `firestore:"id"`
	Payload   string    `firestore:"payload"` // encrypted session JSON
	ExpiresAt time.Time `firestore:"expires_at"`
}

// pendingDoc is the stored shape of a pending login
type pendingDoc struct {
	ID        string    `firestore:"id"`
	State     string    `firestore:"state"` // encrypted state token
	CreatedAt time.Time `firestore:"created_at"`
	ExpiresAt time.Time `firestore:"expires_at"`
}

// userDoc is the stored shape of a tracked user
type userDoc struct {
	Email     string    `firestore:"email"`
	FirstSeen time.Time `firestore:"first_seen"`
	LastSeen  time.Time `firestore:"last_seen"`
}

// NewFirestoreStorage creates a Firestore-backed store. collectionPrefix
// defaults to "ops_front" when empty.
func NewFirestoreStorage(ctx context.Context, projectID, database, collectionPrefix string, encryptor crypto.Encryptor) (*FirestoreStorage, error) {
	var client *firestore.Client
	var err error
	if database != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	if collectionPrefix == "" {
		collectionPrefix = "ops_front"
	}

	return &FirestoreStorage{
		client:    client,
		encryptor: encryptor,
		prefix:    collectionPrefix,
	}, nil
}

func (s *FirestoreStorage) sessions() *firestore.CollectionRef {
	return s.client.Collection(s.prefix + "_sessions")
}

func (s *FirestoreStorage) pending() *firestore.CollectionRef {
	return s.client.Collection(s.prefix + "_pending_logins")
}

func (s *FirestoreStorage) users() *firestore.CollectionRef {
	return s.client.Collection(s.prefix + "_users")
}

// PutPendingLogin stores a pending login keyed by its ID
func (s *FirestoreStorage) PutPendingLogin(ctx context.Context, login session.PendingLogin) error {
	encState, err := s.encryptor.Encrypt(login.State)
	if err != nil {
		return fmt.Errorf("encrypting state token: %w", err)
	}

	_, err = s.pending().Doc(login.ID).Set(ctx, pendingDoc{
		ID:        login.ID,
		State:     encState,
		CreatedAt: login.CreatedAt,
		ExpiresAt: login.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("storing pending login: %w", err)
	}
	return nil
}

// TakePendingLogin reads and deletes a pending login in one transaction
// so the record is single use even across concurrent callbacks.
func (s *FirestoreStorage) TakePendingLogin(ctx context.Context, id string) (*session.PendingLogin, bool) {
	var doc pendingDoc
	found := false

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := s.pending().Doc(id)
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		}
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decoding pending login: %w", err)
		}
		found = true
		return tx.Delete(ref)
	})
	if err != nil {
		log.LogErrorWithFields("storage", "Pending login transaction failed", map[string]any{
			"error": err.Error(),
		})
		return nil, false
	}
	if !found {
		return nil, false
	}

	state, err := s.encryptor.Decrypt(doc.State)
	if err != nil {
		log.LogErrorWithFields("storage", "Failed to decrypt pending state", map[string]any{
			"error": err.Error(),
		})
		return nil, false
	}

	login := session.PendingLogin{
		ID:        doc.ID,
		State:     state,
		CreatedAt: doc.CreatedAt,
		ExpiresAt: doc.ExpiresAt,
	}
	if login.Expired(time.Now()) {
		return nil, false
	}
	return &login, true
}

// PutSession stores an authenticated session, encrypted at rest
func (s *FirestoreStorage) PutSession(ctx context.Context, sess *session.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	encrypted, err := s.encryptor.Encrypt(string(payload))
	if err != nil {
		return fmt.Errorf("encrypting session: %w", err)
	}

	_, err = s.sessions().Doc(sess.ID).Set(ctx, sessionDoc{
		ID:        sess.ID,
		Payload:   encrypted,
		ExpiresAt: sess.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID, dropping expired documents
func (s *FirestoreStorage) GetSession(ctx context.Context, id string) (*session.Session, error) {
	snap, err := s.sessions().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("fetching session: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}

	if time.Now().After(doc.ExpiresAt) {
		if err := s.DeleteSession(ctx, id); err != nil {
			log.LogWarnWithFields("storage", "Failed to delete expired session", map[string]any{
				"error": err.Error(),
			})
		}
		return nil, ErrSessionNotFound
	}

	payload, err := s.encryptor.Decrypt(doc.Payload)
	if err != nil {
		return nil, fmt.Errorf("decrypting session: %w", err)
	}

	var sess session.Session
	if err := json.Unmarshal([]byte(payload), &sess); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}
	return &sess, nil
}

// DeleteSession removes a session document
func (s *FirestoreStorage) DeleteSession(ctx context.Context, id string) error {
	_, err := s.sessions().Doc(id).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// UpsertUser creates or refreshes a user's last seen time
func (s *FirestoreStorage) UpsertUser(ctx context.Context, email string) error {
	ref := s.users().Doc(email)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		now := time.Now()
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return tx.Set(ref, userDoc{Email: email, FirstSeen: now, LastSeen: now})
			}
			return err
		}

		var doc userDoc
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decoding user: %w", err)
		}
		doc.LastSeen = now
		return tx.Set(ref, doc)
	})
	if err != nil {
		return fmt.Errorf("upserting user %s: %w", email, err)
	}
	return nil
}

// GetAllUsers returns all tracked users
func (s *FirestoreStorage) GetAllUsers(ctx context.Context) ([]UserRecord, error) {
	iter := s.users().Documents(ctx)
	defer iter.Stop()

	var users []UserRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating users: %w", err)
		}

		var doc userDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decoding user: %w", err)
		}
		users = append(users, UserRecord{
			Email:     doc.Email,
			FirstSeen: doc.FirstSeen,
			LastSeen:  doc.LastSeen,
		})
	}
	return users, nil
}

// Close releases the Firestore client
func (s *FirestoreStorage) Close() error {
	return s.client.Close()
}
