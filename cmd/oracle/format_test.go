package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oraclelog/oracle-go/pkg/oracle/event"
)

var testTime = time.Date(2025, 11, 26, 20, 2, 54, 0, time.Local)

func TestOutputJSON(t *testing.T) {
	ev := event.New(testTime, event.PlayerJoinData{PlayerName: "Eryndor#7291", Mode: 1100})

	var buf bytes.Buffer
	require.NoError(t, OutputJSON(ev, &buf))

	var decoded struct {
		Type string `json:"type"`
		Data struct {
			PlayerName string `json:"player_name"`
			Mode       int    `json:"mode"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "player_join", decoded.Type)
	assert.Equal(t, "Eryndor#7291", decoded.Data.PlayerName)
	assert.Equal(t, 1100, decoded.Data.Mode)
}

func TestOutputPretty(t *testing.T) {
	tests := []struct {
		name string
		data event.Payload
		want string
	}{
		{
			name: "enter level",
			data: event.EnterLevelData{LevelID: 5302, LevelUID: 1121002, LevelType: 3},
			want: "[20:02:54] > Entered level 5302 (uid 1121002, type 3)\n",
		},
		{
			name: "exit level",
			data: event.ExitLevelData{},
			want: "[20:02:54] < Left level\n",
		},
		{
			name: "item change with name",
			data: event.ItemChangeData{ItemID: 5028, Action: "Add", Amount: 10, Page: 102, Slot: 21, Name: "Flame Ember"},
			want: "[20:02:54] * add Flame Ember x10 (page 102 slot 21)\n",
		},
		{
			name: "item change without name",
			data: event.ItemChangeData{ItemID: 5028, Action: "Delete", Page: 102, Slot: 21},
			want: "[20:02:54] * delete item 5028 x0 (page 102 slot 21)\n",
		},
		{
			name: "player join",
			data: event.PlayerJoinData{PlayerName: "Eryndor#7291", Mode: 1100},
			want: "[20:02:54] + Eryndor#7291 joined (mode 1100)\n",
		},
		{
			name: "pause",
			data: event.GamePauseData{Paused: true},
			want: "[20:02:54] | game paused\n",
		},
		{
			name: "ping",
			data: event.PingData{Ping: 48},
			want: "[20:02:54] ~ ping 48ms\n",
		},
		{
			name: "affixes",
			data: event.StageAffixData{LevelID: 5302, Affixes: []event.Affix{
				{ID: 17, Description: "Deadly foes"},
				{ID: 23},
			}},
			want: "[20:02:54] # level 5302 affixes: 17:Deadly foes, 23\n",
		},
		{
			name: "map finished",
			data: event.MapFinishedData{MapName: "Ancient Vault", Duration: 300},
			want: "[20:02:54] < Finished Ancient Vault in 5:00\n",
		},
		{
			name: "unknown type falls back to discriminant",
			data: event.WorldTransitionData{BackFlowStep: 0, ToMainWorld: true},
			want: "[20:02:54] ? world_transition\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, OutputPretty(event.New(testTime, tt.data), &buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestOutputEventRejectsUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := OutputEvent("xml", event.New(testTime, event.PingData{Ping: 1}), &buf)
	assert.ErrorContains(t, err, "unknown format")
}
