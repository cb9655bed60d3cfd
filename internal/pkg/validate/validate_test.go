package validate

import (
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestEmail(t *testing.T) {
	Convey("邮箱格式校验", t, func() {
		So(Email("alice@test.com"), ShouldBeTrue)
		So(Email("ALICE@Test.COM"), ShouldBeTrue)
		So(Email(""), ShouldBeFalse)
		So(Email("alice"), ShouldBeFalse)
		So(Email("alice@"), ShouldBeFalse)
		So(Email(strings.Repeat("a", 250)+"@x.io"), ShouldBeFalse)
	})
}

func TestUsername(t *testing.T) {
	Convey("用户名格式校验", t, func() {
		So(Username("alice000"), ShouldBeTrue)
		So(Username("Alice.Smith_01-x"), ShouldBeTrue)
		So(Username("short"), ShouldBeFalse)
		So(Username("this-name-is-way-too-long"), ShouldBeFalse)
		So(Username("bad name!"), ShouldBeFalse)
		So(Username("ünïcode00"), ShouldBeFalse)
	})
}
