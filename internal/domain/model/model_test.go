package model

import (
	"encoding/json"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRankingFeedDecoding(t *testing.T) {
	Convey("Given a weekly ranking feed from the competition site", t, func() {
		feed := `[{"id":"1","handle":"CodeMaster","byte_count":45,"score":150,"rank":1,"submitted_at":"2025-11-08T10:30:00Z"}]`

		Convey("When decoding it", func() {
			var entries []RankingEntry
			err := json.Unmarshal([]byte(feed), &entries)

			Convey("Then snake_case keys map onto the entry", func() {
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 1)
				So(entries[0].Handle, ShouldEqual, "CodeMaster")
				So(entries[0].ByteCount, ShouldEqual, 45)
				So(entries[0].Score, ShouldEqual, 150)
				So(entries[0].SubmittedAt.Equal(time.Date(2025, 11, 8, 10, 30, 0, 0, time.UTC)), ShouldBeTrue)
			})
		})
	})
}

func TestSubmissionEncoding(t *testing.T) {
	Convey("Given a submission without a rank", t, func() {
		s := Submission{ID: "a", ChallengeID: 1, Handle: "h", Code: "x", ByteCount: 1, Score: 150}

		Convey("When encoding it", func() {
			raw, err := json.Marshal(s)

			Convey("Then rank is omitted and keys are snake_case", func() {
				So(err, ShouldBeNil)
				So(string(raw), ShouldNotContainSubstring, `"rank"`)
				So(string(raw), ShouldContainSubstring, `"challenge_id":1`)
				So(string(raw), ShouldContainSubstring, `"byte_count":1`)
			})
		})
	})
}
