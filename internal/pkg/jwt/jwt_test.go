package jwt

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestJWT(t *testing.T) {
	Convey("签发与校验 Access Token", t, func() {
		j := NewJWT("test-secret", time.Hour)

		Convey("正常签发可以校验", func() {
			token, err := j.GenerateToken("u-1", "alice000")
			So(err, ShouldBeNil)

			claims, err := j.ValidateToken(token)
			So(err, ShouldBeNil)
			So(claims.UserID, ShouldEqual, "u-1")
			So(claims.Username, ShouldEqual, "alice000")
		})

		Convey("过期 token 返回 ErrExpiredToken", func() {
			token, err := j.GenerateToken("u-1", "alice000")
			So(err, ShouldBeNil)

			j.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
			_, err = j.ValidateToken(token)
			So(err, ShouldEqual, ErrExpiredToken)
		})

		Convey("不同密钥签发的 token 无效", func() {
			other := NewJWT("other-secret", time.Hour)
			token, _ := other.GenerateToken("u-1", "alice000")
			_, err := j.ValidateToken(token)
			So(err, ShouldEqual, ErrInvalidToken)
		})

		Convey("垃圾字符串无效", func() {
			_, err := j.ValidateToken("not-a-token")
			So(err, ShouldEqual, ErrInvalidToken)
		})
	})
}
