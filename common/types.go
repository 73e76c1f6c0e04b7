package common

type LocalMsgType uint32

func (lt LocalMsgType) Type() LocalMsgType {
	return lt & 0xff00
}

func (lt LocalMsgType) SubType() LocalMsgType {
	return lt & 0x00ff
}

// |--type--|-subtype-|
// 0000 0000 0000 0000
const (
	LocalNoUseType         LocalMsgType = 0
	LocalDemoMsg           LocalMsgType = 1 << 8
	LocalDemoMsg_Loading   LocalMsgType = LocalDemoMsg | 1
	LocalDemoMsg_Redrawn   LocalMsgType = LocalDemoMsg | 2
	LocalDemoMsg_Failed    LocalMsgType = LocalDemoMsg | 3
	LocalDemoMsg_Deferred  LocalMsgType = LocalDemoMsg | 4
	LocalKPIMsg            LocalMsgType = 2 << 8
	LocalKPIMsg_DataLoaded LocalMsgType = LocalKPIMsg | 1
)

var LocalMsgType_Name = map[LocalMsgType]string{
	LocalDemoMsg_Loading:   "loading",
	LocalDemoMsg_Redrawn:   "redrawn",
	LocalDemoMsg_Failed:    "failed",
	LocalDemoMsg_Deferred:  "deferred",
	LocalKPIMsg_DataLoaded: "kpi-loaded",
}

func (lt LocalMsgType) String() string {
	if name, ok := LocalMsgType_Name[lt]; ok {
		return name
	}
	return "unknown"
}
