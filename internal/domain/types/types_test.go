package types_test

import (
	"encoding/json"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/akut/internal/domain/model"
	types "github.com/okian/akut/internal/domain/types"
)

func TestEvaluateRequestDecoding(t *testing.T) {
	Convey("Given a client request body", t, func() {
		body := `{
			"caseId": "aks",
			"timeline": [{"id": "1", "timeMs": 4000, "actionId": "GIVE_O2"}],
			"remoteEvents": [{"id": "e1", "type": "DEFIB_NIBP", "tRelMs": 2000, "payload": {"sys": 120, "dia": 80}}]
		}`

		Convey("When it is decoded", func() {
			var req types.EvaluateRequest
			err := json.Unmarshal([]byte(body), &req)

			Convey("Then the timeline and device events are typed", func() {
				So(err, ShouldBeNil)
				So(req.CaseID, ShouldEqual, "aks")
				So(req.Timeline, ShouldHaveLength, 1)
				So(req.Timeline[0].TimeMs, ShouldEqual, 4000)
				So(req.RemoteEvents[0].TRelMs, ShouldEqual, 2000)
				So(req.RemoteEvents[0].Payload["sys"], ShouldEqual, 120.0)
			})
		})

		Convey("When remoteEvents is omitted", func() {
			var req types.EvaluateRequest
			_ = json.Unmarshal([]byte(`{"sessionId": "s1", "timeline": []}`), &req)

			Convey("Then RemoteEvents stays nil so the session log is used", func() {
				So(req.RemoteEvents, ShouldBeNil)
				So(req.SessionID, ShouldEqual, "s1")
			})
		})
	})
}

func TestEvaluationEncoding(t *testing.T) {
	Convey("Given an empty evaluation", t, func() {
		ev := types.Evaluation{
			Timeline:     []model.ActionLogEntry{},
			Evaluated:    []model.EvaluatedAction{},
			ExtraActions: []model.ActionLogEntry{},
		}

		Convey("Then lists encode as empty arrays, not null", func() {
			out, err := json.Marshal(ev)
			So(err, ShouldBeNil)
			So(string(out), ShouldContainSubstring, `"evaluated":[]`)
			So(string(out), ShouldContainSubstring, `"extraActions":[]`)
		})
	})
}
