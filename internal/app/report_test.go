package app_test

import (
	"strings"
	"testing"

	"github.com/okian/cfstat/internal/app"
	"github.com/okian/cfstat/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func testResults() map[string]app.Result {
	aliceSum := model.AccountSummary{Problems: 2, RatedProblems: 1, AvgRating: 800}
	return map[string]app.Result{
		"alice": {
			Account: "alice",
			Summary: &aliceSum,
			Solved: model.SolvedSet{
				{ContestID: 1, Index: "A"}: {Rating: 800},
				{ContestID: 2, Index: "B"}: {},
			},
		},
		"broken": {Account: "broken", Err: "connection timed out"},
	}
}

func TestBuildReport(t *testing.T) {
	Convey("Given results with one failed account", t, func() {
		rep := app.BuildReport(testResults(), []string{"alice", "broken"})

		Convey("Then rows follow request order and the global set skips failures", func() {
			So(rep.Accounts, ShouldHaveLength, 2)
			So(rep.Accounts[0].Account, ShouldEqual, "alice")
			So(rep.Global.Problems, ShouldEqual, 2)
			So(rep.Global.RatedProblems, ShouldEqual, 1)
		})
	})
}

func TestReport_Render(t *testing.T) {
	Convey("Given a report with a failed account", t, func() {
		rep := app.BuildReport(testResults(), []string{"alice", "broken"})

		var sb strings.Builder
		So(rep.Render(&sb), ShouldBeNil)
		out := sb.String()

		Convey("Then successful and failed rows both appear", func() {
			So(out, ShouldContainSubstring, "alice")
			So(out, ShouldContainSubstring, "ERROR: connection timed out")
			So(out, ShouldContainSubstring, "unique problems: 2")
		})
	})
}

func TestReport_WriteCSV(t *testing.T) {
	Convey("Given a report", t, func() {
		rep := app.BuildReport(testResults(), []string{"alice", "broken"})

		var sb strings.Builder
		So(rep.WriteCSV(&sb), ShouldBeNil)
		out := sb.String()

		Convey("Then per-account rows and the aggregate block are written", func() {
			So(out, ShouldContainSubstring, "handle,problems,rated_problems,avg_rating")
			So(out, ShouldContainSubstring, "alice,2,1,800.00")
			So(out, ShouldContainSubstring, "broken,ERROR,,")
			So(out, ShouldContainSubstring, "unique_problems,2")
		})
	})
}
