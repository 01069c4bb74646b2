package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/aweist/whistle-bot/models"
)

const (
	bucketGames    = "games"
	bucketWhistles = "whistles"
	bucketMeta     = "meta"
)

const (
	keyMessageCursor = "dm_cursor"
	keySeasonSynced  = "season_synced"
	prefixCeremony   = "ceremony:"
)

type BoltStorage struct {
	db *bolt.DB
}

func NewBoltStorage(dbPath string) (*BoltStorage, error) {
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketGames, bucketWhistles, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("creating %s bucket: %w", name, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStorage{db: db}, nil
}

func (s *BoltStorage) Close() error {
	return s.db.Close()
}

func gameKey(id int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

// SaveSeason replaces every cached game of season with games and records
// the season as synced.
func (s *BoltStorage) SaveSeason(season int, games []models.GameRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketGames))

		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var game models.GameRecord
			if err := json.Unmarshal(v, &game); err != nil {
				return err
			}
			if game.Season == season {
				stale = append(stale, k)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range stale {
			if err := b.Delete(key); err != nil {
				return err
			}
		}

		for _, game := range games {
			game.Season = season
			data, err := json.Marshal(game)
			if err != nil {
				return fmt.Errorf("marshaling game: %w", err)
			}
			if err := b.Put(gameKey(game.GameID), data); err != nil {
				return err
			}
		}

		meta := tx.Bucket([]byte(bucketMeta))
		return meta.Put([]byte(keySeasonSynced+":"+strconv.Itoa(season)), []byte(time.Now().UTC().Format(time.RFC3339)))
	})
}

// SeasonSynced reports whether season has ever been stored.
func (s *BoltStorage) SeasonSynced(season int) (bool, error) {
	var exists bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketMeta))
		exists = b.Get([]byte(keySeasonSynced+":"+strconv.Itoa(season))) != nil
		return nil
	})
	return exists, err
}

func (s *BoltStorage) GetGame(gameID int) (*models.GameRecord, error) {
	var game models.GameRecord
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketGames))
		data := b.Get(gameKey(gameID))

		if data == nil {
			return nil
		}

		found = true
		return json.Unmarshal(data, &game)
	})

	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return &game, nil
}

// GetAllGames returns cached games ordered by kickoff.
func (s *BoltStorage) GetAllGames() ([]models.GameRecord, error) {
	var games []models.GameRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketGames))

		return b.ForEach(func(k, v []byte) error {
			var game models.GameRecord
			if err := json.Unmarshal(v, &game); err != nil {
				return err
			}
			games = append(games, game)
			return nil
		})
	})

	sort.Slice(games, func(i, j int) bool {
		return games[i].Kickoff.Before(games[j].Kickoff)
	})

	return games, err
}

func (s *BoltStorage) DeleteGame(gameID int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketGames))
		return b.Delete(gameKey(gameID))
	})
}

func whistleKey(w models.Whistle) []byte {
	return []byte(w.PostedAt.UTC().Format("20060102T150405.000000000Z") + "|" + w.ID)
}

// RecordWhistle appends w to the history, assigning an ID if needed.
func (s *BoltStorage) RecordWhistle(w models.Whistle) (models.Whistle, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.PostedAt.IsZero() {
		w.PostedAt = time.Now()
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketWhistles))

		data, err := json.Marshal(w)
		if err != nil {
			return fmt.Errorf("marshaling whistle: %w", err)
		}

		return b.Put(whistleKey(w), data)
	})

	return w, err
}

// RecentWhistles returns up to n whistles, newest first. n <= 0 returns all.
func (s *BoltStorage) RecentWhistles(n int) ([]models.Whistle, error) {
	var whistles []models.Whistle

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketWhistles)).Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var w models.Whistle
			if err := json.Unmarshal(v, &w); err != nil {
				return err
			}
			whistles = append(whistles, w)
			if n > 0 && len(whistles) >= n {
				break
			}
		}
		return nil
	})

	return whistles, err
}

// CleanupOldWhistles removes history posted before the cutoff.
func (s *BoltStorage) CleanupOldWhistles(before time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketWhistles))

		var keysToDelete [][]byte

		err := b.ForEach(func(k, v []byte) error {
			var w models.Whistle
			if err := json.Unmarshal(v, &w); err != nil {
				return err
			}

			if w.PostedAt.Before(before) {
				keysToDelete = append(keysToDelete, k)
			}

			return nil
		})

		if err != nil {
			return err
		}

		for _, key := range keysToDelete {
			if err := b.Delete(key); err != nil {
				return err
			}
		}

		return nil
	})
}

// LatestMessageTimestamp returns the persisted inbound message cursor, or
// the zero time when none is stored.
func (s *BoltStorage) LatestMessageTimestamp() (time.Time, error) {
	var ts time.Time

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketMeta)).Get([]byte(keyMessageCursor))
		if data == nil {
			return nil
		}
		ms, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("parsing message cursor: %w", err)
		}
		ts = time.UnixMilli(ms)
		return nil
	})

	return ts, err
}

func (s *BoltStorage) StoreLatestMessageTimestamp(ts time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketMeta))
		return b.Put([]byte(keyMessageCursor), []byte(strconv.FormatInt(ts.UnixMilli(), 10)))
	})
}

func ceremonyKey(day time.Time) []byte {
	return []byte(prefixCeremony + day.Format("2006-01-02"))
}

// CeremonyPerformed reports whether the ceremony sequence already ran on
// the calendar day of day.
func (s *BoltStorage) CeremonyPerformed(day time.Time) (bool, error) {
	var done bool
	err := s.db.View(func(tx *bolt.Tx) error {
		done = tx.Bucket([]byte(bucketMeta)).Get(ceremonyKey(day)) != nil
		return nil
	})
	return done, err
}

func (s *BoltStorage) MarkCeremonyPerformed(day time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketMeta))
		return b.Put(ceremonyKey(day), []byte(time.Now().UTC().Format(time.RFC3339)))
	})
}
