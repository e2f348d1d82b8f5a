package bcap

import "fmt"

// FuncID - номер удалённой функции b-CAP.
type FuncID int32

const (
	FuncServiceStart FuncID = 1
	FuncServiceStop  FuncID = 2

	FuncControllerConnect      FuncID = 3
	FuncControllerDisconnect   FuncID = 4
	FuncControllerGetFile      FuncID = 6
	FuncControllerGetRobot     FuncID = 7
	FuncControllerGetTask      FuncID = 8
	FuncControllerGetVariable  FuncID = 9
	FuncControllerGetFileNames FuncID = 12
	FuncControllerExecute      FuncID = 17

	FuncFileGetFile      FuncID = 37
	FuncFileGetFileNames FuncID = 39
	FuncFileGetValue     FuncID = 52
	FuncFileGetName      FuncID = 56
	FuncFileRelease      FuncID = 61

	FuncRobotExecute FuncID = 64
	FuncRobotMove    FuncID = 72
	FuncRobotRelease FuncID = 84

	FuncTaskStart   FuncID = 88
	FuncTaskStop    FuncID = 89
	FuncTaskRelease FuncID = 99

	FuncVariableGetValue FuncID = 101
	FuncVariablePutValue FuncID = 102
	FuncVariableRelease  FuncID = 111
)

var funcNames = map[FuncID]string{
	FuncServiceStart:           "Service_Start",
	FuncServiceStop:            "Service_Stop",
	FuncControllerConnect:      "Controller_Connect",
	FuncControllerDisconnect:   "Controller_Disconnect",
	FuncControllerGetFile:      "Controller_GetFile",
	FuncControllerGetRobot:     "Controller_GetRobot",
	FuncControllerGetTask:      "Controller_GetTask",
	FuncControllerGetVariable:  "Controller_GetVariable",
	FuncControllerGetFileNames: "Controller_GetFileNames",
	FuncControllerExecute:      "Controller_Execute",
	FuncFileGetFile:            "File_GetFile",
	FuncFileGetFileNames:       "File_GetFileNames",
	FuncFileGetValue:           "File_GetValue",
	FuncFileGetName:            "File_GetName",
	FuncFileRelease:            "File_Release",
	FuncRobotExecute:           "Robot_Execute",
	FuncRobotMove:              "Robot_Move",
	FuncRobotRelease:           "Robot_Release",
	FuncTaskStart:              "Task_Start",
	FuncTaskStop:               "Task_Stop",
	FuncTaskRelease:            "Task_Release",
	FuncVariableGetValue:       "Variable_GetValue",
	FuncVariablePutValue:       "Variable_PutValue",
	FuncVariableRelease:        "Variable_Release",
}

func (f FuncID) String() string {
	if name, ok := funcNames[f]; ok {
		return name
	}
	return fmt.Sprintf("func(%d)", int32(f))
}
